package otp

import "testing"

func TestExtractCodeFromSubjectRequiresHintWord(t *testing.T) {
	if code := extractCodeFromSubject("Your order 123456 has shipped"); code != "" {
		t.Fatalf("expected no code without an OTP hint word, got %q", code)
	}
	if code := extractCodeFromSubject("Your verification code is 482913"); code != "482913" {
		t.Fatalf("expected 482913, got %q", code)
	}
}

func TestExtractCodeFromTextPicksFirstFourToEightDigitRun(t *testing.T) {
	if code := extractCodeFromText("use 42 then 859201 to sign in"); code != "859201" {
		t.Fatalf("expected the first 4-8 digit run, got %q", code)
	}
	if code := extractCodeFromText("no digits here"); code != "" {
		t.Fatalf("expected no match, got %q", code)
	}
}

func TestBuildQueryIncludesFromMeByDefault(t *testing.T) {
	f := &GmailFetcher{FromMe: true, WithinSeconds: 30}
	q := f.buildQuery()
	if q[:8] != "from:me " {
		t.Fatalf("expected query to start with from:me, got %q", q)
	}
}

func TestBuildQueryOmitsFromMeWhenDisabled(t *testing.T) {
	f := &GmailFetcher{FromMe: false, WithinSeconds: 30}
	q := f.buildQuery()
	if q[:6] != "after:" {
		t.Fatalf("expected query to start with after:, got %q", q)
	}
}
