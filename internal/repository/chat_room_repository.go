package repository

import (
	"context"
	"errors"
	"time"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	hub_errors "github.com/s1d40/empathy-hub-backend/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresChatRoomRepository struct {
	db *gorm.DB
}

func NewChatRoomRepository(db *gorm.DB) ChatRoomRepository {
	return &PostgresChatRoomRepository{db: db}
}

func (r *PostgresChatRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (chat.Room, error) {
	var room chat.Room
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Room{}, hub_errors.ErrNotFound
		}
		return chat.Room{}, err
	}
	return room, nil
}

func (r *PostgresChatRoomRepository) FindDirect(ctx context.Context, a, b uuid.UUID) (chat.Room, error) {
	return findDirectTx(r.db.WithContext(ctx), a, b)
}

func (r *PostgresChatRoomRepository) FindOrCreateDirect(ctx context.Context, a, b uuid.UUID, opening *chat.Message) (chat.Room, bool, error) {
	var (
		room    chat.Room
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		room, created, err = findOrCreateDirectTx(tx, a, b)
		if err != nil {
			return err
		}
		if opening == nil {
			return nil
		}
		opening.RoomID = room.ID
		return appendMessageTx(tx, *opening)
	})
	if err != nil {
		return chat.Room{}, false, err
	}
	if opening == nil {
		return room, created, nil
	}
	room, err = r.GetByID(ctx, room.ID)
	return room, created, err
}

func findDirectTx(tx *gorm.DB, a, b uuid.UUID) (chat.Room, error) {
	var room chat.Room
	err := tx.Preload("Participants").
		Where("direct_key = ? AND is_group = ?", chat.DirectKey(a, b), false).
		First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Room{}, hub_errors.ErrNotFound
		}
		return chat.Room{}, err
	}
	return room, nil
}

func findOrCreateDirectTx(tx *gorm.DB, a, b uuid.UUID) (chat.Room, bool, error) {
	existing, err := findDirectTx(tx, a, b)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, hub_errors.ErrNotFound) {
		return chat.Room{}, false, err
	}
	room, err := chat.NewDirectRoom(a, b)
	if err != nil {
		return chat.Room{}, false, err
	}
	return insertDirectTx(tx, room)
}

// insertDirectTx inserts room under a savepoint. On a direct_key conflict the
// savepoint is rolled back and the row of the concurrent winner is returned.
func insertDirectTx(tx *gorm.DB, room chat.Room) (chat.Room, bool, error) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(&room).Error
	})
	if err == nil {
		return room, true, nil
	}
	if !isUniqueViolation(err) {
		return chat.Room{}, false, err
	}
	if len(room.Participants) != 2 {
		return chat.Room{}, false, err
	}
	existing, ferr := findDirectTx(tx, room.Participants[0].UserID, room.Participants[1].UserID)
	if ferr != nil {
		return chat.Room{}, false, ferr
	}
	return existing, false, nil
}

func (r *PostgresChatRoomRepository) CreateGroup(ctx context.Context, room *chat.Room) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(room).Error
	})
}

func (r *PostgresChatRoomRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]chat.Room, error) {
	var rooms []chat.Room

	subQuery := r.db.Model(&chat.Participant{}).
		Select("room_id").
		Where("user_id = ?", userID)

	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?)", subQuery).
		Order("updated_at DESC").
		Limit(ClampLimit(limit, DefaultRoomLimit)).
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *PostgresChatRoomRepository) AppendMessage(ctx context.Context, msg chat.Message) (chat.Room, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendMessageTx(tx, msg)
	})
	if err != nil {
		return chat.Room{}, err
	}
	return r.GetByID(ctx, msg.RoomID)
}

func appendMessageTx(tx *gorm.DB, msg chat.Message) error {
	var exists int64
	if err := tx.Model(&chat.Room{}).Where("id = ?", msg.RoomID).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return hub_errors.ErrNotFound
	}

	if err := tx.Create(&msg).Error; err != nil {
		return err
	}

	// Only move the summary forward; a slower concurrent append with an
	// older timestamp must not overwrite a newer summary.
	return tx.Model(&chat.Room{}).
		Where("id = ? AND (last_message_sent_at IS NULL OR last_message_sent_at <= ?)", msg.RoomID, msg.CreatedAt).
		Updates(map[string]interface{}{
			"last_message_id":        msg.ID,
			"last_message_sender_id": msg.SenderID,
			"last_message_content":   msg.Content,
			"last_message_sent_at":   msg.CreatedAt,
			"updated_at":             msg.CreatedAt,
		}).Error
}

func (r *PostgresChatRoomRepository) ListMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]chat.Message, error) {
	var messages []chat.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Offset(clampOffset(offset)).
		Limit(ClampLimit(limit, DefaultMessageLimit)).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresChatRoomRepository) MarkRead(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&chat.Participant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Update("last_read_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return hub_errors.ErrNotFound
	}
	return nil
}
