package database

import (
	"database/sql"
	"fmt"
	"time"
)

const (
	addParticipantQuery = "INSERT INTO participants (session_id, account_id, joined_at) " +
		"VALUES ($1, $2, $3) RETURNING id, session_id, account_id, joined_at"
)

func (db *PgStoryLoomRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, first_name, last_name, avatar, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id, username, email, first_name, last_name, avatar",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		params.FirstName,
		params.LastName,
		params.Avatar,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.FirstName,
		&a.LastName,
		&a.Avatar,
	)

	return a, err
}

func (db *PgStoryLoomRepository) UpdateAccount(params UpdateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET username = $2, password_hash = $3, first_name = $4, last_name = $5, "+
			"avatar = $6, profile_image = $7, updated_at = $8 "+
			"WHERE id = $1 RETURNING id, username, email, first_name, last_name, avatar, profile_image, created_at, updated_at",
		params.AccountId,
		params.Username,
		params.PasswordHash,
		params.FirstName,
		params.LastName,
		params.Avatar,
		params.ProfileImage,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.FirstName,
		&a.LastName,
		&a.Avatar,
		&a.ProfileImage,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgStoryLoomRepository) GetAccountById(accountId int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, first_name, last_name, avatar, profile_image, created_at, updated_at "+
			"FROM accounts WHERE id = $1 LIMIT 1",
		accountId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.FirstName,
		&a.LastName,
		&a.Avatar,
		&a.ProfileImage,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgStoryLoomRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, first_name, last_name, avatar, profile_image, created_at, updated_at "+
			"FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.FirstName,
		&a.LastName,
		&a.Avatar,
		&a.ProfileImage,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

// CreateSession inserts the session and seats the host as its first
// participant in a single transaction.
func (db *PgStoryLoomRepository) CreateSession(params CreateSessionParams) (Session, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Session{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO sessions (external_id, title, description, host_id, state, mode, turn_seconds, max_participants, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9) "+
			"RETURNING id, external_id, title, description, host_id, state, mode, turn_seconds, max_participants, created_at, updated_at",
		params.ExternalId,
		params.Title,
		params.Description,
		params.HostId,
		"waiting",
		params.Mode,
		params.TurnSeconds,
		params.MaxParticipants,
		time.Now().UTC(),
	)

	var session Session
	err = res.Scan(
		&session.Id,
		&session.ExternalId,
		&session.Title,
		&session.Description,
		&session.HostId,
		&session.State,
		&session.Mode,
		&session.TurnSeconds,
		&session.MaxParticipants,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return Session{}, err
	}

	_, err = tx.Exec(
		addParticipantQuery,
		session.Id,
		params.HostId,
		time.Now().UTC(),
	)
	if err != nil {
		return Session{}, err
	}

	if err = tx.Commit(); err != nil {
		return Session{}, err
	}

	return session, err
}

func (db *PgStoryLoomRepository) GetSessionByExternalId(externalId string) (Session, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, title, description, host_id, state, mode, turn_seconds, max_participants, created_at, updated_at "+
			"FROM sessions WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var session Session
	err := row.Scan(
		&session.Id,
		&session.ExternalId,
		&session.Title,
		&session.Description,
		&session.HostId,
		&session.State,
		&session.Mode,
		&session.TurnSeconds,
		&session.MaxParticipants,
		&session.CreatedAt,
		&session.UpdatedAt,
	)

	return session, err
}

func (db *PgStoryLoomRepository) GetSessionWithParticipants(sessionId int) (*Session, error) {
	query := `
		SELECT
				s.id,
				s.external_id,
				s.title,
				s.description,
				s.host_id,
				s.state,
				s.mode,
				s.turn_seconds,
				s.max_participants,
				s.created_at,
				s.updated_at,
				p.id,
				p.account_id,
				a.username,
				a.avatar,
				p.joined_at
		FROM sessions s
		LEFT JOIN participants p ON s.id = p.session_id
		LEFT JOIN accounts a ON p.account_id = a.id
		WHERE s.id = $1
		ORDER BY p.joined_at ASC, p.account_id ASC;
`

	rows, err := db.conn.Query(query, sessionId)
	if err != nil {
		return nil, fmt.Errorf("fetch session with participants: %w", err)
	}
	defer rows.Close()

	var session *Session
	for rows.Next() {
		var (
			id              int
			externalId      string
			title           string
			description     string
			hostId          int
			state           string
			mode            string
			turnSeconds     int
			maxParticipants int
			createdAt       time.Time
			updatedAt       time.Time
			participantId   sql.NullInt64
			accountId       sql.NullInt64
			username        sql.NullString
			avatar          sql.NullString
			joinedAt        sql.NullTime
		)

		err := rows.Scan(
			&id,
			&externalId,
			&title,
			&description,
			&hostId,
			&state,
			&mode,
			&turnSeconds,
			&maxParticipants,
			&createdAt,
			&updatedAt,
			&participantId,
			&accountId,
			&username,
			&avatar,
			&joinedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if session == nil {
			session = &Session{
				Id:              id,
				ExternalId:      externalId,
				Title:           title,
				Description:     description,
				HostId:          hostId,
				State:           state,
				Mode:            mode,
				TurnSeconds:     turnSeconds,
				MaxParticipants: maxParticipants,
				CreatedAt:       createdAt,
				UpdatedAt:       updatedAt,
				Participants:    make([]Participant, 0),
			}
		}

		if accountId.Valid && username.Valid {
			session.Participants = append(session.Participants, Participant{
				Id:        int(participantId.Int64),
				SessionId: id,
				AccountId: int(accountId.Int64),
				Username:  username.String,
				Avatar:    avatar.String,
				JoinedAt:  joinedAt.Time,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if session == nil {
		return nil, fmt.Errorf("session with id %d not found", sessionId)
	}

	return session, nil
}

func (db *PgStoryLoomRepository) ListSessions(state string) ([]Session, error) {
	query := "SELECT id, external_id, title, description, host_id, state, mode, turn_seconds, max_participants, created_at, updated_at " +
		"FROM sessions"
	args := []any{}
	if state != "" {
		query += " WHERE state = $1"
		args = append(args, state)
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err = rows.Scan(
			&s.Id,
			&s.ExternalId,
			&s.Title,
			&s.Description,
			&s.HostId,
			&s.State,
			&s.Mode,
			&s.TurnSeconds,
			&s.MaxParticipants,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			break
		}

		sessions = append(sessions, s)
	}
	return sessions, err
}

func (db *PgStoryLoomRepository) ListSessionsForAccount(accountId int) ([]Session, error) {
	rows, err := db.conn.Query(
		"SELECT s.id, s.external_id, s.title, s.description, s.host_id, s.state, s.mode, s.turn_seconds, s.max_participants, s.created_at, s.updated_at "+
			"FROM participants p JOIN sessions s ON s.id = p.session_id WHERE p.account_id = $1 ORDER BY s.created_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err = rows.Scan(
			&s.Id,
			&s.ExternalId,
			&s.Title,
			&s.Description,
			&s.HostId,
			&s.State,
			&s.Mode,
			&s.TurnSeconds,
			&s.MaxParticipants,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			break
		}

		sessions = append(sessions, s)
	}
	return sessions, err
}

func (db *PgStoryLoomRepository) UpdateSessionState(sessionId int, state string) error {
	_, err := db.conn.Exec(
		"UPDATE sessions SET state = $2, updated_at = $3 WHERE id = $1",
		sessionId,
		state,
		time.Now().UTC(),
	)

	return err
}

func (db *PgStoryLoomRepository) DeleteSession(sessionId int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec("DELETE FROM comments WHERE session_id = $1", sessionId)
	if err != nil {
		return err
	}

	_, err = tx.Exec("DELETE FROM participants WHERE session_id = $1", sessionId)
	if err != nil {
		return err
	}

	_, err = tx.Exec("DELETE FROM stories WHERE session_id = $1", sessionId)
	if err != nil {
		return err
	}

	_, err = tx.Exec("DELETE FROM sessions WHERE id = $1", sessionId)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgStoryLoomRepository) AddParticipant(sessionId, accountId int) (Participant, error) {
	res := db.conn.QueryRow(
		addParticipantQuery,
		sessionId,
		accountId,
		time.Now().UTC(),
	)

	var p Participant
	err := res.Scan(
		&p.Id,
		&p.SessionId,
		&p.AccountId,
		&p.JoinedAt,
	)

	return p, err
}

func (db *PgStoryLoomRepository) ParticipantExists(sessionId, accountId int) bool {
	res := db.conn.QueryRow(
		"SELECT id FROM participants WHERE session_id = $1 AND account_id = $2 LIMIT 1",
		sessionId,
		accountId,
	)

	var p Participant
	err := res.Scan(
		&p.Id,
	)

	return err == nil
}

func (db *PgStoryLoomRepository) RemoveParticipant(sessionId, accountId int) error {
	_, err := db.conn.Exec(
		"DELETE FROM participants WHERE session_id = $1 AND account_id = $2",
		sessionId,
		accountId,
	)

	return err
}

func (db *PgStoryLoomRepository) CreateStory(sessionId, currentTurn, timeRemaining int) (Story, error) {
	res := db.conn.QueryRow(
		"INSERT INTO stories (session_id, content, current_turn, time_remaining, elapsed_seconds, updated_at) "+
			"VALUES ($1, '', $2, $3, 0, $4) RETURNING id, session_id, content, current_turn, time_remaining, elapsed_seconds, updated_at",
		sessionId,
		currentTurn,
		timeRemaining,
		time.Now().UTC(),
	)

	var story Story
	err := res.Scan(
		&story.Id,
		&story.SessionId,
		&story.Content,
		&story.CurrentTurn,
		&story.TimeRemaining,
		&story.ElapsedSeconds,
		&story.UpdatedAt,
	)

	return story, err
}

func (db *PgStoryLoomRepository) GetStoryBySessionId(sessionId int) (*Story, error) {
	row := db.conn.QueryRow(
		"SELECT id, session_id, content, current_turn, time_remaining, elapsed_seconds, updated_at "+
			"FROM stories WHERE session_id = $1 LIMIT 1",
		sessionId,
	)

	var story Story
	err := row.Scan(
		&story.Id,
		&story.SessionId,
		&story.Content,
		&story.CurrentTurn,
		&story.TimeRemaining,
		&story.ElapsedSeconds,
		&story.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(
		"SELECT seg.id, seg.story_id, seg.position, seg.author_id, a.username, seg.content, seg.created_at "+
			"FROM segments seg JOIN accounts a ON seg.author_id = a.id "+
			"WHERE seg.story_id = $1 ORDER BY seg.position ASC",
		story.Id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seg Segment
		if err = rows.Scan(
			&seg.Id,
			&seg.StoryId,
			&seg.Position,
			&seg.AuthorId,
			&seg.AuthorName,
			&seg.Content,
			&seg.CreatedAt,
		); err != nil {
			return nil, err
		}

		story.Segments = append(story.Segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &story, nil
}

func (db *PgStoryLoomRepository) UpdateStoryTurn(storyId, currentTurn, timeRemaining int) error {
	_, err := db.conn.Exec(
		"UPDATE stories SET current_turn = $2, time_remaining = $3, updated_at = $4 WHERE id = $1",
		storyId,
		currentTurn,
		timeRemaining,
		time.Now().UTC(),
	)

	return err
}

func (db *PgStoryLoomRepository) UpdateStoryClock(storyId, timeRemaining, elapsedSeconds int) error {
	_, err := db.conn.Exec(
		"UPDATE stories SET time_remaining = $2, elapsed_seconds = $3, updated_at = $4 WHERE id = $1",
		storyId,
		timeRemaining,
		elapsedSeconds,
		time.Now().UTC(),
	)

	return err
}

// AppendSegment records a turn submission. The segment insert and the story
// row update (combined content, turn holder, clock reset) commit together so
// a crash mid-write never leaves a segment without its turn advance.
func (db *PgStoryLoomRepository) AppendSegment(params AppendSegmentParams) (Segment, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Segment{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO segments (story_id, position, author_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, story_id, position, author_id, content, created_at",
		params.StoryId,
		params.Position,
		params.AuthorId,
		params.Content,
		time.Now().UTC(),
	)

	var seg Segment
	err = res.Scan(
		&seg.Id,
		&seg.StoryId,
		&seg.Position,
		&seg.AuthorId,
		&seg.Content,
		&seg.CreatedAt,
	)
	if err != nil {
		return Segment{}, err
	}

	_, err = tx.Exec(
		"UPDATE stories SET content = $2, current_turn = $3, time_remaining = $4, updated_at = $5 WHERE id = $1",
		params.StoryId,
		params.Combined,
		params.NextTurn,
		params.TimeRemaining,
		time.Now().UTC(),
	)
	if err != nil {
		return Segment{}, err
	}

	if err = tx.Commit(); err != nil {
		return Segment{}, err
	}

	return seg, nil
}

func (db *PgStoryLoomRepository) CreateComment(params CreateCommentParams) (Comment, error) {
	res := db.conn.QueryRow(
		"INSERT INTO comments (external_id, session_id, author_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, external_id, session_id, author_id, content, created_at",
		params.ExternalId,
		params.SessionId,
		params.AuthorId,
		params.Content,
		time.Now().UTC(),
	)

	var c Comment
	err := res.Scan(
		&c.Id,
		&c.ExternalId,
		&c.SessionId,
		&c.AuthorId,
		&c.Content,
		&c.CreatedAt,
	)

	return c, err
}

// ListComments joins author profile data at read time so comment payloads
// always carry the author's current username, avatar and image.
func (db *PgStoryLoomRepository) ListComments(sessionId int) ([]Comment, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.external_id, c.session_id, c.author_id, a.username, a.avatar, a.profile_image, c.content, c.created_at "+
			"FROM comments c JOIN accounts a ON c.author_id = a.id "+
			"WHERE c.session_id = $1 ORDER BY c.created_at ASC",
		sessionId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments = make([]Comment, 0)
	for rows.Next() {
		var c Comment
		if err = rows.Scan(
			&c.Id,
			&c.ExternalId,
			&c.SessionId,
			&c.AuthorId,
			&c.AuthorName,
			&c.AuthorAvatar,
			&c.AuthorImage,
			&c.Content,
			&c.CreatedAt,
		); err != nil {
			break
		}

		comments = append(comments, c)
	}
	return comments, err
}
