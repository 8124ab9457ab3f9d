package settings

// Defaults are inserted by "settings init" into an empty table.
var Defaults = []Setting{
	{Key: "app.name", Value: "MindLab Health", Type: TypeString, Category: "general", Description: "Application display name", IsPublic: true, IsEditable: true},
	{Key: "app.version", Value: "1.0.0", Type: TypeString, Category: "general", Description: "Application version", IsPublic: true},
	{Key: "app.timezone", Value: "UTC", Type: TypeString, Category: "general", Description: "Default timezone", IsEditable: true},
	{Key: "email.smtp.host", Value: "smtp.gmail.com", Type: TypeString, Category: "email", Description: "SMTP server host", IsEditable: true},
	{Key: "email.smtp.port", Value: "587", Type: TypeInteger, Category: "email", Description: "SMTP server port", IsEditable: true},
	{Key: "email.from_address", Value: "noreply@mindlabhealth.com", Type: TypeString, Category: "email", Description: "Sender address for outgoing mail", IsEditable: true},
	{Key: "email.notifications.enabled", Value: "true", Type: TypeBoolean, Category: "email", Description: "Send email notifications", IsEditable: true},
	{Key: "appointments.booking_window_days", Value: "30", Type: TypeInteger, Category: "appointments", Description: "How far ahead patients may book", IsPublic: true, IsEditable: true},
	{Key: "appointments.cancellation_hours", Value: "24", Type: TypeInteger, Category: "appointments", Description: "Minimum notice for cancellation", IsPublic: true, IsEditable: true},
	{Key: "appointments.default_duration_minutes", Value: "60", Type: TypeInteger, Category: "appointments", Description: "Default appointment length", IsEditable: true},
	{Key: "security.session_timeout_minutes", Value: "120", Type: TypeInteger, Category: "security", Description: "Idle session timeout", IsEditable: true},
	{Key: "security.password_min_length", Value: "8", Type: TypeInteger, Category: "security", Description: "Minimum password length", IsPublic: true, IsEditable: true},
	{Key: "security.max_login_attempts", Value: "5", Type: TypeInteger, Category: "security", Description: "Failed logins before an alert is raised", IsEditable: true},
	{Key: "api.rate_limit_per_minute", Value: "100", Type: TypeInteger, Category: "api", Description: "Requests per minute per client", IsEditable: true},
	{Key: "payments.enabled", Value: "false", Type: TypeBoolean, Category: "payments", Description: "Enable payment processing", IsPublic: true, IsEditable: true},
	{Key: "payments.currency", Value: "USD", Type: TypeString, Category: "payments", Description: "Billing currency", IsPublic: true, IsEditable: true},
}
