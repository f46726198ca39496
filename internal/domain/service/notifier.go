package service

import "SniperBot/internal/domain/models"

// Notifier takes alert events off the detection path. Notify must not block.
type Notifier interface {
	Notify(ev models.AlertEvent)
}
