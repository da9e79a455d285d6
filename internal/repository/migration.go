package repository

import (
	"fmt"

	"github.com/s1d40/empathy-hub-backend/internal/domain/chat"
	"github.com/s1d40/empathy-hub-backend/internal/domain/notification"
	"github.com/s1d40/empathy-hub-backend/internal/domain/user"

	"gorm.io/gorm"
)

// Models lists every table owned by this service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&user.Relationship{},
		&chat.Room{},
		&chat.Participant{},
		&chat.Message{},
		&chat.Request{},
		&notification.Notification{},
	}
}

// InitSchema runs gorm auto-migration and then the constraints gorm cannot
// express: status checks, the partial unique index on pending requests and
// the message foreign key.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Constraints are added with 'DO $$ BEGIN ... END $$' so re-running is safe.
	statements := []string{
		`DO $$ BEGIN
			ALTER TABLE users ADD CONSTRAINT chk_users_chat_availability
				CHECK (chat_availability IN ('OPEN', 'REQUEST_ONLY', 'DO_NOT_DISTURB'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE user_relationships ADD CONSTRAINT chk_user_relationships_type
				CHECK (type IN ('MUTE', 'BLOCK'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE chat_requests ADD CONSTRAINT chk_chat_requests_status
				CHECK (status IN ('PENDING', 'ACCEPTED', 'DECLINED', 'CANCELLED'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE notifications ADD CONSTRAINT chk_notifications_status
				CHECK (status IN ('UNREAD', 'READ', 'ARCHIVED'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE chat_messages ADD CONSTRAINT fk_messages_room
				FOREIGN KEY (room_id) REFERENCES chat_rooms(id) ON DELETE CASCADE;
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_chat_requests_pending_pair
			ON chat_requests (requester_id, requestee_id) WHERE status = 'PENDING';`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
