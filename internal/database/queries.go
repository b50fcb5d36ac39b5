package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/npezzotti/go-dm/internal/errs"
)

const conversationColumns = `
SELECT c.id, c.kind, c.last_message_id, c.last_message_at, c.created_at,
       array_agg(p.user_id ORDER BY p.user_id)
FROM conversations c
JOIN conversation_participants p ON p.conversation_id = c.id`

// DirectKey normalizes an unordered participant pair so that exactly one
// direct conversation can exist per pair.
func DirectKey(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		c             Conversation
		lastMessageId sql.NullString
		lastMessageAt sql.NullTime
		participants  pq.StringArray
	)

	err := row.Scan(
		&c.Id,
		&c.Kind,
		&lastMessageId,
		&lastMessageAt,
		&c.CreatedAt,
		&participants,
	)
	if err != nil {
		return Conversation{}, err
	}

	c.LastMessageId = lastMessageId.String
	c.LastMessageAt = lastMessageAt.Time
	c.Participants = []string(participants)

	return c, nil
}

func (db *PgRepository) GetUserById(ctx context.Context, id string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, is_online, last_seen, created_at FROM users "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var (
		user     User
		lastSeen sql.NullTime
	)
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.IsOnline,
		&lastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		return User{}, wrapErr("get user", err)
	}
	user.LastSeen = lastSeen.Time

	return user, nil
}

func (db *PgRepository) SetUserPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE users SET is_online = $2, last_seen = $3 WHERE id = $1",
		id,
		online,
		lastSeen,
	)
	if err != nil {
		return wrapErr("set presence", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set presence: %w", errs.ErrNotFound)
	}

	return nil
}

func (db *PgRepository) ResetPresence(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, "UPDATE users SET is_online = FALSE WHERE is_online")
	if err != nil {
		return wrapErr("reset presence", err)
	}

	return nil
}

func (db *PgRepository) ListConversationsByParticipant(ctx context.Context, userId string) ([]Conversation, error) {
	rows, err := db.conn.QueryContext(ctx,
		conversationColumns+`
WHERE c.id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = $1)
GROUP BY c.id
ORDER BY c.last_message_at DESC NULLS LAST`,
		userId,
	)
	if err != nil {
		return nil, wrapErr("list conversations", err)
	}
	defer rows.Close()

	conversations := make([]Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, wrapErr("scan conversation", err)
		}
		conversations = append(conversations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("list conversations", err)
	}

	return conversations, nil
}

func (db *PgRepository) GetConversation(ctx context.Context, id string) (Conversation, error) {
	row := db.conn.QueryRowContext(ctx,
		conversationColumns+`
WHERE c.id = $1
GROUP BY c.id`,
		id,
	)

	c, err := scanConversation(row)
	if err != nil {
		return Conversation{}, wrapErr("get conversation", err)
	}

	return c, nil
}

func (db *PgRepository) GetDirectConversation(ctx context.Context, userA, userB string) (Conversation, error) {
	row := db.conn.QueryRowContext(ctx,
		conversationColumns+`
WHERE c.kind = 'direct' AND c.direct_key = $1
GROUP BY c.id`,
		DirectKey(userA, userB),
	)

	c, err := scanConversation(row)
	if err != nil {
		return Conversation{}, wrapErr("get direct conversation", err)
	}

	return c, nil
}

// CreateDirectConversation returns the direct conversation between the two
// users, creating it with the given id when none exists. The unique direct_key
// makes concurrent calls for the same pair converge on a single row.
func (db *PgRepository) CreateDirectConversation(ctx context.Context, id, userA, userB string) (Conversation, bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Conversation{}, false, wrapErr("begin", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO conversations (id, kind, direct_key, created_at) "+
			"VALUES ($1, 'direct', $2, $3) ON CONFLICT (direct_key) DO NOTHING",
		id,
		DirectKey(userA, userB),
		time.Now().UTC(),
	)
	if err != nil {
		return Conversation{}, false, wrapErr("create conversation", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Conversation{}, false, wrapErr("create conversation", err)
	}

	if n == 0 {
		if err := tx.Commit(); err != nil {
			return Conversation{}, false, wrapErr("commit", err)
		}
		c, err := db.GetDirectConversation(ctx, userA, userB)
		return c, false, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2), ($1, $3)",
		id,
		userA,
		userB,
	)
	if err != nil {
		return Conversation{}, false, wrapErr("add participants", err)
	}

	if err := tx.Commit(); err != nil {
		return Conversation{}, false, wrapErr("commit", err)
	}

	c, err := db.GetConversation(ctx, id)
	return c, true, err
}

func (db *PgRepository) CreateMessage(ctx context.Context, msg Message) error {
	var (
		fileUrl, fileName sql.NullString
		fileSize          sql.NullInt64
		content           sql.NullString
	)
	if msg.Content != nil {
		content = sql.NullString{String: *msg.Content, Valid: true}
	}
	if msg.File != nil {
		fileUrl = sql.NullString{String: msg.File.Url, Valid: true}
		fileName = sql.NullString{String: msg.File.Name, Valid: true}
		fileSize = sql.NullInt64{Int64: msg.File.Size, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, sender_id, kind, content, file_url, file_name, file_size, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
		msg.Id,
		msg.ConversationId,
		msg.SenderId,
		msg.Kind,
		content,
		fileUrl,
		fileName,
		fileSize,
		msg.CreatedAt,
	)
	if err != nil {
		return wrapErr("create message", err)
	}

	return nil
}

func (db *PgRepository) UpdateConversationLastMessage(ctx context.Context, conversationId, messageId string, at time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE conversations SET last_message_id = $2, last_message_at = $3 WHERE id = $1",
		conversationId,
		messageId,
		at,
	)
	if err != nil {
		return wrapErr("update conversation", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update conversation: %w", errs.ErrNotFound)
	}

	return nil
}

func (db *PgRepository) GetMessage(ctx context.Context, id string) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, conversation_id, sender_id, kind, content, file_url, file_name, file_size, is_read, created_at "+
			"FROM messages WHERE id = $1 LIMIT 1",
		id,
	)

	msg, err := scanMessage(row)
	if err != nil {
		return Message{}, wrapErr("get message", err)
	}

	return msg, nil
}

// ListMessages returns up to limit messages of a conversation created before
// the given time, oldest first. A zero before starts at the newest message.
func (db *PgRepository) ListMessages(ctx context.Context, conversationId string, before time.Time, limit int) ([]Message, error) {
	var cutoff sql.NullTime
	if !before.IsZero() {
		cutoff = sql.NullTime{Time: before, Valid: true}
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT m.id, m.conversation_id, m.sender_id, m.kind, m.content, m.file_url, m.file_name, m.file_size, m.is_read, m.created_at, u.username "+
			"FROM messages m JOIN users u ON u.id = m.sender_id "+
			"WHERE m.conversation_id = $1 AND ($2::timestamptz IS NULL OR m.created_at < $2) "+
			"ORDER BY m.created_at DESC, m.id DESC LIMIT $3",
		conversationId,
		cutoff,
		limit,
	)
	if err != nil {
		return nil, wrapErr("list messages", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var senderName string
		msg, err := scanMessage(rows, &senderName)
		if err != nil {
			return nil, wrapErr("scan message", err)
		}
		msg.SenderName = senderName
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapErr("list messages", err)
	}

	// newest first from the index, served oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// scanMessage scans the message columns in table order followed by any
// extra destinations.
func scanMessage(row rowScanner, extra ...any) (Message, error) {
	var (
		msg               Message
		content           sql.NullString
		fileUrl, fileName sql.NullString
		fileSize          sql.NullInt64
	)
	dest := []any{
		&msg.Id,
		&msg.ConversationId,
		&msg.SenderId,
		&msg.Kind,
		&content,
		&fileUrl,
		&fileName,
		&fileSize,
		&msg.IsRead,
		&msg.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Message{}, err
	}

	if content.Valid {
		msg.Content = &content.String
	}
	if fileUrl.Valid {
		msg.File = &File{
			Url:  fileUrl.String,
			Name: fileName.String,
			Size: fileSize.Int64,
		}
	}

	return msg, nil
}

// AddReadMarker appends a read marker unless one already exists for the
// (message, reader) pair and reports whether it appended one.
func (db *PgRepository) AddReadMarker(ctx context.Context, marker ReadMarker) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, wrapErr("begin", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO read_markers (message_id, user_id, read_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (message_id, user_id) DO NOTHING",
		marker.MessageId,
		marker.UserId,
		marker.ReadAt,
	)
	if err != nil {
		return false, wrapErr("add read marker", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("add read marker", err)
	}

	if n == 0 {
		return false, nil
	}

	if _, err = tx.ExecContext(ctx, "UPDATE messages SET is_read = TRUE WHERE id = $1", marker.MessageId); err != nil {
		return false, wrapErr("mark message read", err)
	}

	if err := tx.Commit(); err != nil {
		return false, wrapErr("commit", err)
	}

	return true, nil
}
