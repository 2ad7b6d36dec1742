package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taptapgo/internal/domain"
	"taptapgo/internal/logger"
)

// NotificationType is the event type published for a state change.
type NotificationType string

const (
	NotificationRideCreated    NotificationType = "ride.created"
	NotificationRideAccepted   NotificationType = "ride.accepted"
	NotificationRideArrived    NotificationType = "ride.arrived"
	NotificationRideStarted    NotificationType = "ride.started"
	NotificationRideCompleted  NotificationType = "ride.completed"
	NotificationRideCancelled  NotificationType = "ride.cancelled"
	NotificationRideReceipt    NotificationType = "ride.receipt"
	NotificationWalletCredit   NotificationType = "wallet.credited"
	NotificationWalletAdjust   NotificationType = "wallet.adjusted"
	NotificationWalletFrozen   NotificationType = "wallet.frozen"
	NotificationRetraitCreated NotificationType = "retrait.created"
	NotificationRetraitTraite  NotificationType = "retrait.traite"
	NotificationRetraitAnnule  NotificationType = "retrait.annule"
)

// EventPublisher delivers notifications to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Notification is one message for a recipient.
type Notification struct {
	Type        NotificationType `json:"type"`
	RecipientID string           `json:"recipient_id"`
	Message     string           `json:"message"`
	Data        map[string]any   `json:"data"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationService fans state changes out to the event bus. Push, SMS and
// in-app delivery subscribe to those events elsewhere.
type NotificationService struct {
	publisher EventPublisher
}

// NewNotificationService creates a new NotificationService. A nil publisher
// only logs.
func NewNotificationService(publisher EventPublisher) *NotificationService {
	return &NotificationService{publisher: publisher}
}

var rideNotifications = map[domain.RideStatus]NotificationType{
	domain.RideStatusPending:   NotificationRideCreated,
	domain.RideStatusAccepted:  NotificationRideAccepted,
	domain.RideStatusArrived:   NotificationRideArrived,
	domain.RideStatusStarted:   NotificationRideStarted,
	domain.RideStatusCompleted: NotificationRideCompleted,
	domain.RideStatusCancelled: NotificationRideCancelled,
}

// NotifyRideStatus tells the counterpart of the acting party that the ride
// entered its current status.
func (s *NotificationService) NotifyRideStatus(ctx context.Context, ride *domain.Ride, actor domain.Actor) {
	recipient := ride.PassengerID
	if actor.ID == ride.PassengerID {
		recipient = ride.DriverID
	}
	if recipient == "" && ride.Status != domain.RideStatusPending {
		return
	}

	data := map[string]any{
		"ride_id":      ride.ID,
		"status":       ride.Status,
		"vehicle_type": ride.VehicleType,
		"admin_id":     ride.AdminID,
		"actor_role":   actor.Role,
	}
	message := "Ride " + string(ride.Status)
	switch ride.Status {
	case domain.RideStatusPending:
		data["estimated_price"] = ride.EstimatedPrice
		message = "New ride request"
	case domain.RideStatusCompleted:
		if ride.FinalPrice != nil {
			data["final_price"] = *ride.FinalPrice
		}
	case domain.RideStatusCancelled:
		data["reason"] = ride.CancelReason
		data["cancelled_by"] = ride.CancelledBy
		data["cancellation_fee"] = ride.CancellationFee
	}

	s.send(ctx, Notification{
		Type:        rideNotifications[ride.Status],
		RecipientID: recipient,
		Message:     message,
		Data:        data,
		CreatedAt:   time.Now(),
	})
}

// NotifyReceipt sends the settlement receipt to the passenger.
func (s *NotificationService) NotifyReceipt(ctx context.Context, receipt *domain.Receipt) {
	s.send(ctx, Notification{
		Type:        NotificationRideReceipt,
		RecipientID: receipt.PassengerID,
		Message:     FormatReceipt(receipt),
		Data: map[string]any{
			"ride_id":     receipt.RideID,
			"final_price": receipt.FinalPrice,
			"driver_net":  receipt.DriverNet,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyLedgerChange tells the driver about a credit or an adjustment.
func (s *NotificationService) NotifyLedgerChange(ctx context.Context, change LedgerChange) {
	if change.Transaction == nil {
		return
	}
	tx := change.Transaction

	typ := NotificationWalletCredit
	if tx.Type == domain.TxAdjustment {
		typ = NotificationWalletAdjust
	}
	s.send(ctx, Notification{
		Type:        typ,
		RecipientID: tx.DriverID,
		Message:     "Wallet updated",
		Data: map[string]any{
			"transaction_id": tx.ID,
			"type":           tx.Type,
			"amount":         tx.Amount,
			"ride_id":        tx.RideID,
			"balance":        change.After.Balance,
		},
		CreatedAt: time.Now(),
	})
}

var retraitNotifications = map[domain.StatutRetrait]NotificationType{
	domain.StatutEnAttente: NotificationRetraitCreated,
	domain.StatutTraite:    NotificationRetraitTraite,
	domain.StatutAnnule:    NotificationRetraitAnnule,
}

// NotifyRetrait tells the driver that a withdrawal entered its status.
func (s *NotificationService) NotifyRetrait(ctx context.Context, r *domain.Retrait) {
	s.send(ctx, Notification{
		Type:        retraitNotifications[r.Statut],
		RecipientID: r.ChauffeurID,
		Message:     "Retrait " + string(r.Statut),
		Data: map[string]any{
			"retrait_id":   r.ID,
			"montant":      r.Montant,
			"montant_net":  r.MontantNet,
			"methode":      r.Methode,
			"type_retrait": r.Type,
			"motif":        r.MotifAnnulation,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyWalletFrozen alerts operations that a wallet needs reconciliation.
func (s *NotificationService) NotifyWalletFrozen(ctx context.Context, driverID, reason string) {
	s.send(ctx, Notification{
		Type:        NotificationWalletFrozen,
		RecipientID: driverID,
		Message:     "Wallet frozen pending reconciliation",
		Data:        map[string]any{"reason": reason},
		CreatedAt:   time.Now(),
	})
}

// send logs the notification and publishes it. Delivery failures never fail
// the operation that produced the notification.
func (s *NotificationService) send(ctx context.Context, n Notification) {
	log := logger.WithContext(ctx)
	log.Info("notification",
		zap.String("type", string(n.Type)),
		zap.String("recipient_id", n.RecipientID),
		zap.String("message", n.Message),
	)

	if s == nil || s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, string(n.Type), n); err != nil {
		log.Warn("failed to publish notification",
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
	}
}
