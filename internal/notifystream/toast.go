package notifystream

import (
	"log"
	"time"
)

type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastWarning ToastLevel = "warning"
)

// Toast is a transient message for the user
type Toast struct {
	Level    ToastLevel
	Title    string
	Message  string
	Duration time.Duration
}

// Toaster shows toasts. A desktop notifier plugs in here.
type Toaster interface {
	Toast(t Toast)
}

// ToasterFunc adapts a function to Toaster
type ToasterFunc func(t Toast)

func (f ToasterFunc) Toast(t Toast) {
	f(t)
}

// LogToaster writes toasts to the standard logger
type LogToaster struct{}

func (LogToaster) Toast(t Toast) {
	log.Printf("[%s] %s: %s", t.Level, t.Title, t.Message)
}
