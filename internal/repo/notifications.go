package repo

import (
	"context"
	"database/sql"

	"enviroplan/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	read := 0
	if n.Read {
		read = 1
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(id,activity_id,activity_name,ts,status,read,username)
VALUES (?,?,?,?,?,?,?)`, n.ID, n.ActivityID, n.ActivityName, n.TS, string(n.Status), read, n.User)
	return err
}

func (r Repo) ListNotifications(ctx context.Context, unreadOnly bool) ([]domain.Notification, error) {
	query := `SELECT id,activity_id,activity_name,ts,status,read,username FROM notifications ORDER BY ts DESC, id DESC`
	if unreadOnly {
		query = `SELECT id,activity_id,activity_name,ts,status,read,username FROM notifications WHERE read=0 ORDER BY ts DESC, id DESC`
	}
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var read int
		if err := rows.Scan(&n.ID, &n.ActivityID, &n.ActivityName, &n.TS, &n.Status, &read, &n.User); err != nil {
			return nil, err
		}
		n.Read = read != 0
		res = append(res, n)
	}
	return res, rows.Err()
}

// MarkNotificationRead flags one notification; missing ids are ignored.
func (r Repo) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE id=?`, id)
	return err
}

// MarkAllNotificationsRead flags every unread notification.
func (r Repo) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read=1 WHERE read=0`)
	return err
}
