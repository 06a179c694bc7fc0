package main

import "testing"

func TestVersionFlag(t *testing.T) {
	code := run([]string{"ilverify", "--version"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
}

func TestVerifyTrivialMethodOK(t *testing.T) {
	code := run([]string{"ilverify", "verify", "--fixture", "testdata/trivial.json"})
	if code != 0 {
		t.Fatalf("expected exit 0 for a verifiable method, got %d", code)
	}
}

func TestVerifyUnderflowRejected(t *testing.T) {
	code := run([]string{"ilverify", "verify", "--fixture", "testdata/underflow.json"})
	if code != 1 {
		t.Fatalf("expected exit 1 for a rejected method, got %d", code)
	}
}

func TestVerifyCollectAll(t *testing.T) {
	code := run([]string{"ilverify", "verify", "--collect-all", "--format", "json", "--fixture", "testdata/underflow.json"})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestVerifyMissingFixture(t *testing.T) {
	code := run([]string{"ilverify", "verify", "--fixture", "testdata/does-not-exist.json"})
	if code != 2 {
		t.Fatalf("expected exit 2 for a missing fixture, got %d", code)
	}
}

func TestDumpCFG(t *testing.T) {
	code := run([]string{"ilverify", "dump-cfg", "--fixture", "testdata/trivial.json"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
}
