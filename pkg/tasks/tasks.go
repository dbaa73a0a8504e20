// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// ResetEmailTask represents the data for a password reset email delivery job.
type ResetEmailTask struct {
	Email     string `json:"email"`
	ResetLink string `json:"reset_link"`
}
