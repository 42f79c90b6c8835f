package telegram

//go:generate go run go.uber.org/mock/mockgen -source=telegram.go -destination=mocks/mock.go
type Client interface {
	// SendMessageToUser sends plain text to the configured user.
	SendMessageToUser(text string) error
	// SendAlert sends a bold title followed by detail, both escaped for MarkdownV2.
	SendAlert(title, detail string) error
}
