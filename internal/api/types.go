package api

import "time"

// The backend has historically been inconsistent about field casing
// (S3Key vs s3Key, SessionToken vs token). Every wire struct in this file
// carries both spellings and normalizes into one canonical form before the
// value leaves the package; business logic never sees the drift.

// Session is the authenticated identity returned by sign-in.
type Session struct {
	Token     string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Source is one retrieved document chunk backing an answer.
type Source struct {
	FileName   string
	ChunkIndex int
	Score      float64
}

// QueryMetrics describes how a single query was served.
type QueryMetrics struct {
	TotalRequestTimeMs float64
	Cached             bool
	TokensUsed         int
	ResultsCount       int
}

// SearchResult is the answer to one submitted query.
type SearchResult struct {
	Answer  string
	Sources []Source
	Metrics *QueryMetrics
}

// ChatRecord is one stored question/answer pair from the history endpoint.
type ChatRecord struct {
	ID        string
	Query     string
	Answer    string
	Sources   []Source
	Metrics   *QueryMetrics
	CreatedAt time.Time
}

// ChatPage is one page of chat history.
type ChatPage struct {
	Chats         []ChatRecord
	NextPageToken string
	HasMore       bool
	Count         int
}

// FileEntry is one uploaded document owned by the signed-in user.
type FileEntry struct {
	Key      string
	FileName string
}

// UploadTarget is a presigned write location for one file.
type UploadTarget struct {
	URL string
	Key string
}

// MetricsReport is the backend's aggregate performance snapshot. The three
// sections are backend-defined maps; the client only formats them.
type MetricsReport struct {
	Performance map[string]any
	Cache       map[string]any
	System      map[string]any
}

// envelope is the common {success, message, data} wrapper. Some endpoints
// use {status, message} instead, with status==1 meaning success.
type envelope struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

type signInWire struct {
	Token        string `json:"token"`
	SessionToken string `json:"SessionToken"`
	ExpiresAt    string `json:"expiresAt"`
	User         struct {
		ID     string `json:"id"`
		UserID string `json:"UserId"`
		Email  string `json:"email"`
		EmailP string `json:"Email"`
	} `json:"user"`
}

func (w signInWire) normalize() Session {
	s := Session{
		Token:  firstNonEmpty(w.Token, w.SessionToken),
		UserID: firstNonEmpty(w.User.ID, w.User.UserID),
		Email:  firstNonEmpty(w.User.Email, w.User.EmailP),
	}
	if t, err := time.Parse(time.RFC3339, w.ExpiresAt); err == nil {
		s.ExpiresAt = t
	}
	return s
}

type sourceWire struct {
	FileName   string  `json:"fileName"`
	FileNameP  string  `json:"FileName"`
	ChunkIndex int     `json:"chunkIndex"`
	ChunkP     int     `json:"ChunkIndex"`
	Score      float64 `json:"score"`
	ScoreP     float64 `json:"Score"`
}

func (w sourceWire) normalize() Source {
	return Source{
		FileName:   firstNonEmpty(w.FileName, w.FileNameP),
		ChunkIndex: firstNonZero(w.ChunkIndex, w.ChunkP),
		Score:      firstNonZeroF(w.Score, w.ScoreP),
	}
}

type metricsWire struct {
	TotalRequestTimeMs float64 `json:"totalRequestTimeMs"`
	Cached             bool    `json:"cached"`
	TokensUsed         int     `json:"tokensUsed"`
	ResultsCount       int     `json:"resultsCount"`
}

func (w metricsWire) normalize() *QueryMetrics {
	return &QueryMetrics{
		TotalRequestTimeMs: w.TotalRequestTimeMs,
		Cached:             w.Cached,
		TokensUsed:         w.TokensUsed,
		ResultsCount:       w.ResultsCount,
	}
}

type searchWire struct {
	Answer  string       `json:"answer"`
	Sources []sourceWire `json:"sources"`
	Metrics *metricsWire `json:"metrics"`
}

func (w searchWire) normalize() SearchResult {
	r := SearchResult{Answer: w.Answer}
	for _, s := range w.Sources {
		r.Sources = append(r.Sources, s.normalize())
	}
	if w.Metrics != nil {
		r.Metrics = w.Metrics.normalize()
	}
	return r
}

type chatWire struct {
	ID        string       `json:"id"`
	ChatID    string       `json:"chatId"`
	Query     string       `json:"query"`
	QueryP    string       `json:"Query"`
	Answer    string       `json:"answer"`
	AnswerP   string       `json:"Answer"`
	Sources   []sourceWire `json:"sources"`
	Metrics   *metricsWire `json:"metrics"`
	CreatedAt string       `json:"createdAt"`
}

func (w chatWire) normalize() ChatRecord {
	r := ChatRecord{
		ID:     firstNonEmpty(w.ID, w.ChatID),
		Query:  firstNonEmpty(w.Query, w.QueryP),
		Answer: firstNonEmpty(w.Answer, w.AnswerP),
	}
	for _, s := range w.Sources {
		r.Sources = append(r.Sources, s.normalize())
	}
	if w.Metrics != nil {
		r.Metrics = w.Metrics.normalize()
	}
	if t, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
		r.CreatedAt = t
	}
	return r
}

type fileWire struct {
	S3Key     string `json:"S3Key"`
	S3KeyLC   string `json:"s3Key"`
	Key       string `json:"Key"`
	FileName  string `json:"FileName"`
	FileNameL string `json:"fileName"`
}

func (w fileWire) normalize() FileEntry {
	return FileEntry{
		Key:      firstNonEmpty(w.S3Key, w.S3KeyLC, w.Key),
		FileName: firstNonEmpty(w.FileName, w.FileNameL),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonZeroF(values ...float64) float64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
