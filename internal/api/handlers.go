package api

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/storyloom/storyloom/internal/config"
	"github.com/storyloom/storyloom/internal/database"
	"github.com/storyloom/storyloom/internal/game"
	"github.com/storyloom/storyloom/internal/types"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar"`
}

type UpdateAccountRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Avatar       string `json:"avatar"`
	ProfileImage string `json:"profile_image"`
}

type CreateSessionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Mode        string `json:"mode"`
	TurnSeconds int    `json:"turn_seconds"`
}

type CreateCommentRequest struct {
	SessionId string `json:"session_id"`
	Content   string `json:"content"`
}

func (s *StoryLoomApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func userFromAccount(a database.Account) types.User {
	return types.User{
		Id:           a.Id,
		Username:     a.Username,
		EmailAddress: a.EmailAddress,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Avatar:       a.Avatar,
		ProfileImage: a.ProfileImage,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func sessionFromRow(row database.Session) types.Session {
	session := types.Session{
		Id:              row.Id,
		ExternalId:      row.ExternalId,
		Title:           row.Title,
		Description:     row.Description,
		HostId:          row.HostId,
		State:           row.State,
		Mode:            row.Mode,
		TurnSeconds:     row.TurnSeconds,
		MaxParticipants: row.MaxParticipants,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}

	for _, p := range row.Participants {
		session.Participants = append(session.Participants, types.Participant{
			Id:       p.AccountId,
			Username: p.Username,
			Avatar:   p.Avatar,
			JoinedAt: p.JoinedAt,
		})
	}

	return session
}

func (s *StoryLoomApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Avatar:       req.Avatar,
	}

	newUser, err := s.db.CreateAccount(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, userFromAccount(newUser))
}

func (s *StoryLoomApp) account(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userId, ok := UserId(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		user, err := s.db.GetAccountById(userId)
		if err != nil {
			var errResp *ApiError
			if errors.Is(err, sql.ErrNoRows) {
				errResp = NewNotFoundError()
			} else {
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, userFromAccount(user))
	case http.MethodPut:
		userId, ok := UserId(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		curUser, err := s.db.GetAccountById(userId)
		if err != nil {
			var errResp *ApiError
			if errors.Is(err, sql.ErrNoRows) {
				errResp = NewNotFoundError()
			} else {
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		var updateAccountReq UpdateAccountRequest
		err = json.NewDecoder(r.Body).Decode(&updateAccountReq)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if updateAccountReq.Username == "" || updateAccountReq.Password == "" {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		// profile images travel as base64, reject anything that won't decode
		if updateAccountReq.ProfileImage != "" {
			if _, err := base64.StdEncoding.DecodeString(updateAccountReq.ProfileImage); err != nil {
				errResp := NewBadRequestError()
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}

		pwdHash, err := hashPassword(updateAccountReq.Password)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		params := database.UpdateAccountParams{
			AccountId:    curUser.Id,
			Username:     updateAccountReq.Username,
			PasswordHash: pwdHash,
			FirstName:    updateAccountReq.FirstName,
			LastName:     updateAccountReq.LastName,
			Avatar:       updateAccountReq.Avatar,
			ProfileImage: updateAccountReq.ProfileImage,
		}

		dbUser, err := s.db.UpdateAccount(params)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, userFromAccount(dbUser))
	default:
		errResp := NewMethodNotAllowedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
}

func (s *StoryLoomApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, userFromAccount(user))
}

func (s *StoryLoomApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	u := userFromAccount(dbUser)

	token, err := s.createJwtForSession(u, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, u)
}

func (s *StoryLoomApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func (s *StoryLoomApp) createSession(w http.ResponseWriter, r *http.Request) {
	var createSessionReq CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&createSessionReq); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if createSessionReq.Title == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	mode := createSessionReq.Mode
	if mode == "" {
		mode = types.ModeFreeform
	}
	if mode != types.ModeTimed && mode != types.ModeFreeform {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	turnSeconds := createSessionReq.TurnSeconds
	if turnSeconds < 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if turnSeconds == 0 {
		turnSeconds = config.DefaultTurnSeconds
	}

	// the host must have a profile before opening a lobby
	if _, err := s.db.GetAccountById(userId); err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateSessionParams{
		Title:           createSessionReq.Title,
		Description:     createSessionReq.Description,
		HostId:          userId,
		ExternalId:      sid,
		Mode:            mode,
		TurnSeconds:     turnSeconds,
		MaxParticipants: config.DefaultMaxParticipants,
	}

	newSession, err := s.db.CreateSession(params)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, sessionFromRow(newSession))
}

func (s *StoryLoomApp) listSessions(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state != "" && !slices.Contains([]string{types.StateWaiting, types.StateInProgress, types.StateCompleted}, state) {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbSessions, err := s.db.ListSessions(state)
	if err != nil {
		s.log.Println("list sessions:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sessions := make([]types.Session, 0, len(dbSessions))
	for _, row := range dbSessions {
		sessions = append(sessions, sessionFromRow(row))
	}

	s.writeJson(w, http.StatusOK, sessions)
}

func (s *StoryLoomApp) getMySessions(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbSessions, err := s.db.ListSessionsForAccount(userId)
	if err != nil {
		s.log.Println("list sessions for account:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sessions := make([]types.Session, 0, len(dbSessions))
	for _, row := range dbSessions {
		sessions = append(sessions, sessionFromRow(row))
	}

	s.writeJson(w, http.StatusOK, sessions)
}

func (s *StoryLoomApp) getSession(w http.ResponseWriter, r *http.Request) {
	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	row, err := s.db.GetSessionByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	full, err := s.db.GetSessionWithParticipants(row.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	session := sessionFromRow(*full)

	if session.State != types.StateWaiting {
		story, err := s.db.GetStoryBySessionId(row.Id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if story != nil {
			session.Story = s.storyFromRow(story, session.Participants)
		}
	}

	s.writeJson(w, http.StatusOK, session)
}

// storyFromRow converts a story row for API responses. Rows written before
// per-segment authorship have only combined content, so segment records are
// rebuilt from it by replaying the turn rotation.
func (s *StoryLoomApp) storyFromRow(row *database.Story, participants []types.Participant) *types.Story {
	story := &types.Story{
		SessionId:      row.SessionId,
		Content:        row.Content,
		CurrentTurn:    row.CurrentTurn,
		TimeRemaining:  row.TimeRemaining,
		ElapsedSeconds: row.ElapsedSeconds,
		UpdatedAt:      row.UpdatedAt,
	}

	for _, seg := range row.Segments {
		story.Segments = append(story.Segments, types.Segment{
			Position:   seg.Position,
			AuthorId:   seg.AuthorId,
			AuthorName: seg.AuthorName,
			Content:    seg.Content,
			CreatedAt:  seg.CreatedAt,
		})
	}

	if len(story.Segments) == 0 && story.Content != "" {
		story.Segments = game.ReconstructSegments(story.Content, participants)
	}

	return story
}

func (s *StoryLoomApp) getStory(w http.ResponseWriter, r *http.Request) {
	externalId := r.URL.Query().Get("session_id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	row, err := s.db.GetSessionByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	story, err := s.db.GetStoryBySessionId(row.Id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	full, err := s.db.GetSessionWithParticipants(row.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, s.storyFromRow(story, sessionFromRow(*full).Participants))
}

func (s *StoryLoomApp) deleteSession(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId := r.URL.Query().Get("id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	session, err := s.db.GetSessionByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// only the host may dissolve the session
	if session.HostId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	err = s.db.DeleteSession(session.Id)
	if err != nil {
		s.log.Println("delete session:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.gs.UnloadSession(r.Context(), session.ExternalId, true); err != nil {
		s.log.Println("delete session from game server:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *StoryLoomApp) getComments(w http.ResponseWriter, r *http.Request) {
	externalId := r.URL.Query().Get("session_id")
	if externalId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	session, err := s.db.GetSessionByExternalId(externalId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbComments, err := s.db.ListComments(session.Id)
	if err != nil {
		s.log.Println("list comments:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	comments := make([]types.Comment, 0, len(dbComments))
	for _, c := range dbComments {
		comments = append(comments, types.Comment{
			ExternalId: c.ExternalId,
			SessionId:  session.ExternalId,
			Author: types.User{
				Id:           c.AuthorId,
				Username:     c.AuthorName,
				Avatar:       c.AuthorAvatar,
				ProfileImage: c.AuthorImage,
			},
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, comments)
}

func (s *StoryLoomApp) createComment(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var createCommentReq CreateCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&createCommentReq); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if createCommentReq.SessionId == "" || createCommentReq.Content == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	session, err := s.db.GetSessionByExternalId(createCommentReq.SessionId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	author, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateCommentParams{
		ExternalId: uuid.NewString(),
		SessionId:  session.Id,
		AuthorId:   userId,
		Content:    createCommentReq.Content,
	}

	newComment, err := s.db.CreateComment(params)
	if err != nil {
		s.log.Println("create comment:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.Comment{
		ExternalId: newComment.ExternalId,
		SessionId:  session.ExternalId,
		Author: types.User{
			Id:           author.Id,
			Username:     author.Username,
			Avatar:       author.Avatar,
			ProfileImage: author.ProfileImage,
		},
		Content:   newComment.Content,
		CreatedAt: newComment.CreatedAt,
	})
}

func (s *StoryLoomApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := game.NewClient(userFromAccount(user), conn, s.gs, s.log)

	s.gs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
