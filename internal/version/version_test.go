package version

import "testing"

func TestSummaryUsesCurrentValues(t *testing.T) {
	oldVersion, oldCommit, oldDate := Version, Commit, BuildDate
	t.Cleanup(func() {
		Version, Commit, BuildDate = oldVersion, oldCommit, oldDate
	})

	Version = "v1.2.3"
	Commit = "abc1234"
	BuildDate = "2025-01-02T03:04:05Z"

	summary := Summary()

	if summary != "v1.2.3 (commit abc1234, built 2025-01-02T03:04:05Z)" {
		t.Fatalf("unexpected summary: %s", summary)
	}
}

func TestDefaults(t *testing.T) {
	if Version == "" || Commit == "" || BuildDate == "" {
		t.Fatalf("build metadata should never be empty")
	}
}
