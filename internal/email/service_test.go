package email

import (
	"strings"
	"testing"
)

func TestIsConfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"empty", Config{}, false},
		{"no from", Config{Host: "smtp.example.org", Port: "587"}, false},
		{"complete", Config{Host: "smtp.example.org", Port: "587", From: "maps@example.org"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewService(tc.cfg).IsConfigured(); got != tc.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSendEmailUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendEmail([]string{"a@x.org"}, "s", "b"); err == nil {
		t.Fatal("expected error when unconfigured")
	}
}

func TestAssignmentMessage(t *testing.T) {
	subject, body := AssignmentMessage("Cells and Systems", "teacher@example.org")
	if !strings.Contains(subject, "Cells and Systems") {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "teacher@example.org") {
		t.Errorf("body missing teacher contact: %q", body)
	}

	subject, body = AssignmentMessage("", "")
	if !strings.Contains(subject, "a learning map") {
		t.Errorf("fallback subject = %q", subject)
	}
	if strings.Contains(body, "Contact your teacher") {
		t.Errorf("body should omit contact line without teacher email: %q", body)
	}
}

func TestNotifyAssignmentNoRecipients(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.NotifyAssignment(nil, "t", ""); err != nil {
		t.Fatalf("empty recipient list should be a no-op, got %v", err)
	}
}
