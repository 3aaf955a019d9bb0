// Package notify contains outbound notification transports.
//
// The only transport today is Telegram (Bot API sendMessage). The alert
// dispatcher depends on a narrow Notifier interface, so additional
// transports can be added without touching dispatch logic.
package notify
