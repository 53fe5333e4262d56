package crashlog

import (
	"os"
	"testing"
)

func TestReportNilIsNoop(t *testing.T) {
	os.Remove(crashLogPath)
	Report(nil, "test")
	if _, err := os.Stat(crashLogPath); err == nil {
		t.Fatal("Report(nil, ...) should not create a crash log")
	}
}

func TestReportWritesFile(t *testing.T) {
	os.Remove(crashLogPath)
	defer os.Remove(crashLogPath)

	Report("boom", "worker-3")

	data, err := os.ReadFile(crashLogPath)
	if err != nil {
		t.Fatalf("expected crash log to be written: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("crash log is empty")
	}
}

func TestGoRecoversPanic(t *testing.T) {
	os.Remove(crashLogPath)
	defer os.Remove(crashLogPath)

	done := make(chan struct{})
	Go("panicker", func() {
		defer close(done)
		panic("kaboom")
	})
	<-done // fn's deferred close runs first; Go's deferred recover then stops the panic from crashing the test binary
}
