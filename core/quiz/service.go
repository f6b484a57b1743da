package quiz

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bhoidhruv/ddquest/core"
	"github.com/bhoidhruv/ddquest/core/profile"
	"github.com/bhoidhruv/ddquest/storage/document"
)

var (
	// errors
	ErrNotFound     = errors.New("quiz not found")
	ErrExists       = errors.New("a quiz with this id already exists")
	ErrNotAvailable = errors.New("this quiz is not available today")
)

type (
	Service interface {
		// Today fetches the quiz of the day for kind; the weekly test is
		// refused outside weekends.
		Today(ctx context.Context, kind Kind) (Quiz, error)
		Get(ctx context.Context, id string) (Quiz, error)
		Create(ctx context.Context, nq NewQuiz) (Quiz, error)
		// Submit appends an immutable score record and, for daily quizzes,
		// bumps the owner's streak. The returned int is the streak after
		// submission (0 when it was not touched).
		Submit(ctx context.Context, uid string, sub Submission) (Score, int, error)
		Scores(ctx context.Context, uid string) ([]Score, error)
	}

	service struct {
		quizzes  document.Collection
		scores   document.Collection
		profiles profile.Service
		logger   core.Logger

		nowFunc func() time.Time // mockable
	}
)

func NewService(db document.Store, profiles profile.Service, logger core.Logger) Service {
	return &service{
		quizzes:  db.Collection(document.Quizzes),
		scores:   db.Collection(document.Scores),
		profiles: profiles,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

func (svc *service) Today(ctx context.Context, kind Kind) (Quiz, error) {
	now := svc.nowFunc()
	if kind == KindWeekly && !WeeklyAvailable(now) {
		return Quiz{}, ErrNotAvailable
	}
	return svc.Get(ctx, ID(kind, now))
}

func (svc *service) Get(ctx context.Context, id string) (Quiz, error) {
	doc, err := svc.quizzes.Get(ctx, id)
	if err != nil {
		if err == document.ErrNotFound {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	var qz Quiz
	if err := doc.Decode(&qz); err != nil {
		return Quiz{}, err
	}
	qz.ID = id
	return qz, nil
}

func (svc *service) Create(ctx context.Context, nq NewQuiz) (Quiz, error) {
	date := nq.Date
	if date == "" {
		date = svc.nowFunc().Format("2006-01-02")
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return Quiz{}, err
	}

	qz := Quiz{
		ID:        ID(Kind(nq.Kind), day),
		Kind:      Kind(nq.Kind),
		Subject:   nq.Subject,
		Date:      date,
		Questions: nq.Questions,
	}
	doc, err := document.Encode(qz)
	if err != nil {
		return Quiz{}, err
	}
	delete(doc, "id")

	if err := svc.quizzes.Create(ctx, qz.ID, doc); err != nil {
		if err == document.ErrExists {
			return Quiz{}, ErrExists
		}
		return Quiz{}, err
	}
	return qz, nil
}

func (svc *service) Submit(ctx context.Context, uid string, sub Submission) (Score, int, error) {
	score := Score{
		UserID:    uid,
		QuizID:    sub.QuizID,
		Score:     sub.Score,
		Total:     sub.Total,
		Timestamp: svc.nowFunc().UnixNano() / int64(time.Millisecond),
	}
	doc, err := document.Encode(score)
	if err != nil {
		return Score{}, 0, err
	}
	delete(doc, "id")

	id, err := svc.scores.Add(ctx, doc)
	if err != nil {
		return Score{}, 0, err
	}
	score.ID = id

	// only the daily quiz feeds the streak; a failed bump does not undo the
	// recorded score, it is reported to the logs and carries on
	var streak int
	if strings.HasPrefix(sub.QuizID, string(KindDaily)+"_") {
		streak, err = svc.profiles.IncrementStreak(ctx, uid)
		if err != nil {
			svc.logger.Warn("quiz: bumping streak for "+uid, err)
			streak = 0
		}
	}
	return score, streak, nil
}

func (svc *service) Scores(ctx context.Context, uid string) ([]Score, error) {
	res, err := svc.scores.Query(ctx, document.Filter{Field: "userId", Value: uid})
	if err != nil {
		return nil, err
	}
	out := make([]Score, 0, len(res))
	for _, kd := range res {
		var sc Score
		if err := kd.Doc.Decode(&sc); err != nil {
			svc.logger.Warn("quiz: decoding score "+kd.ID, err)
			continue
		}
		sc.ID = kd.ID
		out = append(out, sc)
	}
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}
