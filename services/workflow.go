package services

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/framecraft-studio/framecraft-api/models"
)

var (
	// ErrInvalidTransition is returned when an order or job card is not in
	// the state the requested transition starts from.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrVersionConflict is returned when a concurrent writer changed the
	// order between read and update.
	ErrVersionConflict = errors.New("order was modified concurrently")
)

// WorkflowService is the single writer for order and job card statuses.
// Every transition runs in one transaction that updates the order, the
// job card and any dependent draft together, so the two status columns
// can never diverge. Orders carry a version column; each transition is a
// compare-and-swap on it.
type WorkflowService struct {
	db *gorm.DB
}

// NewWorkflowService creates a WorkflowService on the given database
// handle.
func NewWorkflowService(db *gorm.DB) *WorkflowService {
	return &WorkflowService{db: db}
}

// AssignWorker moves a pending order to assigned and upserts its job
// card. Re-assigning the same order updates the existing job card rather
// than creating a second one (upsert keyed on order_id).
func (s *WorkflowService) AssignWorker(orderID, workerID, actorID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusAssigned {
			return ErrInvalidTransition
		}

		from := order.Status
		if err := transitionOrder(tx, &order, models.OrderStatusAssigned, map[string]interface{}{
			"worker_id": workerID,
		}); err != nil {
			return err
		}

		// At most one job card per order: insert or take over the
		// existing row.
		card := models.JobCard{
			OrderID:  order.ID,
			WorkerID: workerID,
			Status:   models.JobCardStatusAssigned,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"worker_id":  workerID,
				"status":     models.JobCardStatusAssigned,
				"updated_at": time.Now(),
			}),
		}).Create(&card).Error; err != nil {
			return err
		}

		return appendEvent(tx, &order, actorID, "assigned", from, fmt.Sprintf("assigned to worker %d", workerID))
	})
	if err != nil {
		return nil, err
	}
	s.publish(&order, actorID, "assigned")
	return &order, nil
}

// StartWork moves an assigned order to in_progress along with its job
// card. Only the assigned worker may start work.
func (s *WorkflowService) StartWork(orderID, actorID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status != models.OrderStatusAssigned {
			return ErrInvalidTransition
		}
		if order.WorkerID == nil || *order.WorkerID != actorID {
			return ErrInvalidTransition
		}

		from := order.Status
		if err := transitionOrder(tx, &order, models.OrderStatusInProgress, nil); err != nil {
			return err
		}
		if err := transitionJobCard(tx, order.ID, models.JobCardStatusAssigned, models.JobCardStatusInProgress); err != nil {
			return err
		}
		return appendEvent(tx, &order, actorID, "work_started", from, "")
	})
	if err != nil {
		return nil, err
	}
	s.publish(&order, actorID, "work_started")
	return &order, nil
}

// SubmitDraft records a draft for review and moves the order to
// draft_submitted. The job card is marked completed: the production work
// is done, only the review remains.
func (s *WorkflowService) SubmitDraft(orderID, workerID uint, fileKey, note string) (*models.Draft, error) {
	var order models.Order
	var draft models.Draft
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status != models.OrderStatusInProgress {
			return ErrInvalidTransition
		}
		if order.WorkerID == nil || *order.WorkerID != workerID {
			return ErrInvalidTransition
		}

		draft = models.Draft{
			OrderID:  order.ID,
			WorkerID: workerID,
			FileKey:  fileKey,
			Note:     note,
			Status:   models.DraftStatusSubmitted,
		}
		if err := tx.Create(&draft).Error; err != nil {
			return err
		}

		from := order.Status
		if err := transitionOrder(tx, &order, models.OrderStatusDraftSubmitted, nil); err != nil {
			return err
		}
		if err := transitionJobCard(tx, order.ID, models.JobCardStatusInProgress, models.JobCardStatusCompleted); err != nil {
			return err
		}
		return appendEvent(tx, &order, workerID, "draft_submitted", from, note)
	})
	if err != nil {
		return nil, err
	}
	s.publish(&order, workerID, "draft_submitted")
	return &draft, nil
}

// ApproveDraft closes the order: draft approved, order completed, job
// card completed, all in one transaction.
func (s *WorkflowService) ApproveDraft(draftID, actorID uint, reviewNote string) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var draft models.Draft
		if err := tx.First(&draft, draftID).Error; err != nil {
			return err
		}
		if draft.Status != models.DraftStatusSubmitted {
			return ErrInvalidTransition
		}
		if err := tx.First(&order, draft.OrderID).Error; err != nil {
			return err
		}
		if order.Status != models.OrderStatusDraftSubmitted {
			return ErrInvalidTransition
		}

		now := time.Now()
		if err := tx.Model(&draft).Updates(map[string]interface{}{
			"status":      models.DraftStatusApproved,
			"review_note": reviewNote,
			"reviewed_at": &now,
		}).Error; err != nil {
			return err
		}

		from := order.Status
		if err := transitionOrder(tx, &order, models.OrderStatusCompleted, map[string]interface{}{
			"completed_at": &now,
		}); err != nil {
			return err
		}
		// The job card is already completed by the draft submission;
		// assert it inside the same transaction so approval can never
		// leave the pair split.
		if err := tx.Model(&models.JobCard{}).Where("order_id = ?", order.ID).
			Update("status", models.JobCardStatusCompleted).Error; err != nil {
			return err
		}
		return appendEvent(tx, &order, actorID, "draft_approved", from, reviewNote)
	})
	if err != nil {
		return nil, err
	}
	s.publish(&order, actorID, "draft_approved")
	return &order, nil
}

// RejectDraft sends the order back to production: draft rejected, order
// and job card back to in_progress.
func (s *WorkflowService) RejectDraft(draftID, actorID uint, reviewNote string) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var draft models.Draft
		if err := tx.First(&draft, draftID).Error; err != nil {
			return err
		}
		if draft.Status != models.DraftStatusSubmitted {
			return ErrInvalidTransition
		}
		if err := tx.First(&order, draft.OrderID).Error; err != nil {
			return err
		}
		if order.Status != models.OrderStatusDraftSubmitted {
			return ErrInvalidTransition
		}

		now := time.Now()
		if err := tx.Model(&draft).Updates(map[string]interface{}{
			"status":      models.DraftStatusRejected,
			"review_note": reviewNote,
			"reviewed_at": &now,
		}).Error; err != nil {
			return err
		}

		from := order.Status
		if err := transitionOrder(tx, &order, models.OrderStatusInProgress, nil); err != nil {
			return err
		}
		if err := tx.Model(&models.JobCard{}).Where("order_id = ?", order.ID).
			Update("status", models.JobCardStatusInProgress).Error; err != nil {
			return err
		}
		return appendEvent(tx, &order, actorID, "draft_rejected", from, reviewNote)
	})
	if err != nil {
		return nil, err
	}
	s.publish(&order, actorID, "draft_rejected")
	return &order, nil
}

// Cancel moves any non-terminal order to cancelled. The job card, if one
// exists, is left as-is for the production record.
func (s *WorkflowService) Cancel(orderID, actorID uint, reason string) (*models.Order, error) {
	return s.sideState(orderID, actorID, models.OrderStatusCancelled, "cancelled", reason)
}

// MarkDelayed moves any non-terminal order to delayed.
func (s *WorkflowService) MarkDelayed(orderID, actorID uint, reason string) (*models.Order, error) {
	return s.sideState(orderID, actorID, models.OrderStatusDelayed, "delayed", reason)
}

// Resume moves a delayed order back to the status it was delayed from,
// read off the latest "delayed" event. The job card was untouched by the
// delay, so it already matches the restored status.
func (s *WorkflowService) Resume(orderID, actorID uint, reason string) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status != models.OrderStatusDelayed {
			return ErrInvalidTransition
		}

		var delay models.OrderEvent
		if err := tx.Where("order_id = ? AND type = ?", order.ID, "delayed").
			Order("id DESC").First(&delay).Error; err != nil {
			return err
		}
		target := delay.FromStatus
		if target == "" {
			target = models.OrderStatusPending
		}

		from := order.Status
		if err := transitionOrder(tx, &order, target, nil); err != nil {
			return err
		}
		return appendEvent(tx, &order, actorID, "resumed", from, reason)
	})
	if err != nil {
		return nil, err
	}
	s.publish(&order, actorID, "resumed")
	return &order, nil
}

func (s *WorkflowService) sideState(orderID, actorID uint, status, eventType, reason string) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Terminal() {
			return ErrInvalidTransition
		}
		from := order.Status
		if err := transitionOrder(tx, &order, status, nil); err != nil {
			return err
		}
		return appendEvent(tx, &order, actorID, eventType, from, reason)
	})
	if err != nil {
		return nil, err
	}
	s.publish(&order, actorID, eventType)
	return &order, nil
}

// SetWaitingMaterials toggles the job card between in_progress and
// waiting_materials while the order itself stays in_progress.
func (s *WorkflowService) SetWaitingMaterials(orderID, actorID uint, waiting bool) (*models.JobCard, error) {
	var card models.JobCard
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status != models.OrderStatusInProgress {
			return ErrInvalidTransition
		}
		if order.WorkerID == nil || *order.WorkerID != actorID {
			return ErrInvalidTransition
		}

		from, to := models.JobCardStatusInProgress, models.JobCardStatusWaitingMaterials
		eventType := "waiting_materials"
		if !waiting {
			from, to = to, from
			eventType = "materials_received"
		}
		if err := transitionJobCard(tx, order.ID, from, to); err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", order.ID).First(&card).Error; err != nil {
			return err
		}
		return appendEvent(tx, &order, actorID, eventType, order.Status, "")
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// LogMinutes adds worked time to the job card's elapsed-work counter.
func (s *WorkflowService) LogMinutes(orderID, actorID uint, minutes int) (*models.JobCard, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("minutes must be positive")
	}
	var card models.JobCard
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).First(&card).Error; err != nil {
			return err
		}
		if card.WorkerID != actorID {
			return ErrInvalidTransition
		}
		if err := tx.Model(&card).Update("minutes_logged", gorm.Expr("minutes_logged + ?", minutes)).Error; err != nil {
			return err
		}
		return tx.Where("order_id = ?", orderID).First(&card).Error
	})
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// transitionOrder performs the compare-and-swap status update. extra
// columns ride along in the same UPDATE. The in-memory order is refreshed
// on success.
func transitionOrder(tx *gorm.DB, order *models.Order, to string, extra map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":  to,
		"version": order.Version + 1,
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := tx.Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return tx.First(order, order.ID).Error
}

// transitionJobCard updates the job card status guarded on its current
// value, so a transition applied twice fails instead of silently
// re-running.
func transitionJobCard(tx *gorm.DB, orderID uint, from, to string) error {
	result := tx.Model(&models.JobCard{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// appendEvent writes the timeline row for a transition inside the same
// transaction. The order already holds the post-transition status.
func appendEvent(tx *gorm.DB, order *models.Order, actorID uint, eventType, fromStatus, detail string) error {
	event := models.OrderEvent{
		OrderID:    order.ID,
		ActorID:    actorID,
		Type:       eventType,
		FromStatus: fromStatus,
		ToStatus:   order.Status,
		Detail:     detail,
	}
	return tx.Create(&event).Error
}

// publish pushes the transition onto the change feed. Failures are logged
// and never surfaced: the feed is advisory, the database is the record.
func (s *WorkflowService) publish(order *models.Order, actorID uint, eventType string) {
	publisher := GetEventPublisher()
	if publisher == nil {
		return
	}
	if err := publisher.PublishOrderEvent(OrderChange{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		ActorID:     actorID,
		Type:        eventType,
	}); err != nil {
		log.Warnf("Failed to publish order event for order %d: %v", order.ID, err)
	}
}
