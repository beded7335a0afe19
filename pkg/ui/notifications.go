package ui

import (
	"fmt"
	"os/exec"
	"runtime"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	return exec.Command("notify-send", "--app-name=bilagscraper", title, message).Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.Command("osascript", "-e", script).Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		$template = [Windows.UI.Notifications.ToastNotificationManager]::GetTemplateContent([Windows.UI.Notifications.ToastTemplateType]::ToastText02)
		$nodes = $template.GetElementsByTagName("text")
		$nodes.Item(0).AppendChild($template.CreateTextNode(%q)) | Out-Null
		$nodes.Item(1).AppendChild($template.CreateTextNode(%q)) | Out-Null
		$toast = [Windows.UI.Notifications.ToastNotification]::new($template)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("bilagscraper").Show($toast)
	`, title, message)
	return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// Notifier sends desktop notifications when a run ends
type Notifier struct {
	sender     NotificationSender
	onComplete bool
	onError    bool
}

// NewNotifier picks the sender for the current platform
func NewNotifier(onComplete, onError bool) *Notifier {
	var sender NotificationSender
	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}
	return &Notifier{sender: sender, onComplete: onComplete, onError: onError}
}

// NewNotifierWithSender is NewNotifier with an explicit sender
func NewNotifierWithSender(sender NotificationSender, onComplete, onError bool) *Notifier {
	return &Notifier{sender: sender, onComplete: onComplete, onError: onError}
}

// NotifySummary reports a finished run. Runs with failed items count as
// errors.
func (n *Notifier) NotifySummary(downloaded, failed int) error {
	if failed > 0 {
		if !n.onError {
			return nil
		}
		return n.send("Receipt download finished with errors",
			fmt.Sprintf("%d downloaded, %d failed", downloaded, failed))
	}
	if !n.onComplete {
		return nil
	}
	return n.send("Receipt download complete", fmt.Sprintf("%d receipts downloaded", downloaded))
}

// NotifyError reports a run that stopped early
func (n *Notifier) NotifyError(err error) error {
	if !n.onError || err == nil {
		return nil
	}
	return n.send("Receipt download failed", err.Error())
}

func (n *Notifier) send(title, message string) error {
	if n.sender == nil {
		return nil
	}
	return n.sender.Send(title, message)
}
