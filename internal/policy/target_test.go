package policy

import "testing"

func TestMatchesLiteral(t *testing.T) {
	if !Matches("svc-1", "svc-1") {
		t.Error("expected literal match")
	}
	if Matches("svc-1", "svc-2") {
		t.Error("expected literal mismatch")
	}
}

func TestMatchesWildcard(t *testing.T) {
	if !Matches("*", "anything") {
		t.Error("* should match any non-empty target")
	}
	if !Matches("all", "anything") {
		t.Error("all should be an alias for *")
	}
	if Matches("*", "") {
		t.Error("* should not match empty target")
	}
}

func TestMatchesPrefixGlob(t *testing.T) {
	if !Matches("svc-*", "svc-1") {
		t.Error("expected prefix glob match")
	}
	if Matches("svc-*", "other-1") {
		t.Error("expected prefix glob mismatch")
	}
}

func TestMatchesSuffixGlob(t *testing.T) {
	if !Matches("*-prod", "api-prod") {
		t.Error("expected suffix glob match")
	}
	if Matches("*-prod", "api-staging") {
		t.Error("expected suffix glob mismatch")
	}
}
