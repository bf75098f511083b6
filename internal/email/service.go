// Package email sends plain-text notifications via SMTP.
package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// NotifyAssignment emails students that a map was assigned to them.
func (s *Service) NotifyAssignment(to []string, mapTitle, teacherEmail string) error {
	if len(to) == 0 {
		return nil
	}
	subject, body := AssignmentMessage(mapTitle, teacherEmail)
	return s.SendEmail(to, subject, body)
}

// AssignmentMessage builds the subject and body of an assignment
// notification.
func AssignmentMessage(mapTitle, teacherEmail string) (subject, body string) {
	if mapTitle == "" {
		mapTitle = "a learning map"
	}
	subject = fmt.Sprintf("New learning map assigned: %s", mapTitle)

	var b strings.Builder
	fmt.Fprintf(&b, "You have been assigned the learning map %q.\n\n", mapTitle)
	b.WriteString("Sign in to view your map and track your progress.\n")
	if teacherEmail != "" {
		fmt.Fprintf(&b, "\nQuestions? Contact your teacher at %s.\n", teacherEmail)
	}
	return subject, b.String()
}
