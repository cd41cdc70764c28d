package database

import (
	"gorm.io/gorm"
)

// MigrateExtensions installs the extensions the table defaults and triggers rely on
func MigrateExtensions(db *gorm.DB) error {
	for _, ext := range []string{"uuid-ossp", "pgcrypto"} {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "` + ext + `"`).Error; err != nil {
			return err
		}
	}
	return nil
}

// MigrateConstraints adds the embed key trigger and the booking constraints
func MigrateConstraints(db *gorm.DB) error {
	statements := []string{
		// Embed keys are issued here and nowhere else: emb_ + 12 chars of [a-z0-9]
		`CREATE OR REPLACE FUNCTION issue_widget_embed_key() RETURNS trigger AS $$
		DECLARE
			alphabet CONSTANT text := 'abcdefghijklmnopqrstuvwxyz0123456789';
			candidate text;
			bytes bytea;
		BEGIN
			IF TG_OP = 'UPDATE' THEN
				NEW.embed_key := OLD.embed_key;
				RETURN NEW;
			END IF;
			LOOP
				bytes := gen_random_bytes(12);
				candidate := 'emb_';
				FOR i IN 0..11 LOOP
					candidate := candidate || substr(alphabet, (get_byte(bytes, i) % 36) + 1, 1);
				END LOOP;
				EXIT WHEN NOT EXISTS (SELECT 1 FROM widgets WHERE embed_key = candidate);
			END LOOP;
			NEW.embed_key := candidate;
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`,

		`DROP TRIGGER IF EXISTS widgets_embed_key ON widgets`,

		`CREATE TRIGGER widgets_embed_key
		BEFORE INSERT OR UPDATE OF embed_key ON widgets
		FOR EACH ROW EXECUTE FUNCTION issue_widget_embed_key()`,

		`DO $$ BEGIN
			ALTER TABLE widgets ADD CONSTRAINT chk_widgets_embed_key_format
			CHECK (embed_key ~ '^emb_[a-z0-9]{12}$');
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$`,

		`DO $$ BEGIN
			ALTER TABLE bookings ADD CONSTRAINT chk_bookings_players_positive CHECK (players > 0);
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$`,

		`DO $$ BEGIN
			ALTER TABLE bookings ADD CONSTRAINT chk_bookings_slot_order CHECK (end_time > start_time);
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$`,

		`DO $$ BEGIN
			ALTER TABLE bookings ADD CONSTRAINT chk_bookings_status
			CHECK (status IN ('pending', 'confirmed', 'completed', 'cancelled', 'no-show'));
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$`,

		// Capacity snapshots scan overlapping bookings of one widget
		`CREATE INDEX IF NOT EXISTS idx_bookings_widget_slot
		ON bookings (widget_id, start_time, end_time) WHERE status IN ('pending', 'confirmed', 'no-show')`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_pending_refunds
		ON bookings (updated_at) WHERE status = 'cancelled' AND refund_state IN ('requested', 'pending')`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_confirmed_end
		ON bookings (end_time) WHERE status = 'confirmed'`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
