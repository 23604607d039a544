// Package leaderboardsvc keeps the best graded percentage of every student per quiz in Redis sorted sets.
package leaderboardsvc

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/edunex/core/quiz"
)

type Leaderboard struct {
	redis  redis.UniversalClient
	prefix string
}

var (
	_ quiz.Observer = (*Leaderboard)(nil)
	_ quiz.Ranker   = (*Leaderboard)(nil)
)

func New(rdb redis.UniversalClient, prefix string) *Leaderboard {
	return &Leaderboard{redis: rdb, prefix: prefix}
}

func (lb *Leaderboard) key(quizID int64) string {
	return fmt.Sprintf("%s:quiz:%d:leaderboard", lb.prefix, quizID)
}

func (lb *Leaderboard) AttemptStarted(context.Context, quiz.Quiz, quiz.Attempt) error { return nil }

// AttemptGraded records the attempt percentage unless the student already has a better one.
func (lb *Leaderboard) AttemptGraded(ctx context.Context, q quiz.Quiz, a quiz.Attempt) error {
	if a.Status != quiz.StatusGraded {
		return nil
	}
	err := lb.redis.ZAddArgs(ctx, lb.key(q.ID), redis.ZAddArgs{
		GT:      true,
		Members: []redis.Z{{Score: a.Percentage, Member: strconv.FormatInt(a.StudentID, 10)}},
	}).Err()
	return errors.Wrapf(err, "updating leaderboard of quiz %d", q.ID)
}

// Top returns the n best students of a quiz (all of them when n <= 0), ties by student id.
// quiz.ErrNoStandings is returned when nothing was recorded for the quiz.
func (lb *Leaderboard) Top(ctx context.Context, quizID int64, n int) ([]quiz.Standing, error) {
	res, err := lb.redis.ZRevRangeWithScores(ctx, lb.key(quizID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "reading leaderboard of quiz %d", quizID)
	}
	if len(res) == 0 {
		return nil, quiz.ErrNoStandings
	}

	standings := make([]quiz.Standing, 0, len(res))
	for _, z := range res {
		member, _ := z.Member.(string)
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad leaderboard member %q", member)
		}
		standings = append(standings, quiz.Standing{StudentID: id, Percentage: z.Score})
	}
	// redis orders ties by member bytes, which puts "9" before "10"
	sort.SliceStable(standings, func(i, j int) bool {
		if standings[i].Percentage != standings[j].Percentage {
			return standings[i].Percentage > standings[j].Percentage
		}
		return standings[i].StudentID < standings[j].StudentID
	})
	if n > 0 && len(standings) > n {
		standings = standings[:n]
	}
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings, nil
}

// Reset drops the leaderboard of a quiz, e.g. once the quiz is deleted.
func (lb *Leaderboard) Reset(ctx context.Context, quizID int64) error {
	return errors.Wrapf(lb.redis.Del(ctx, lb.key(quizID)).Err(), "resetting leaderboard of quiz %d", quizID)
}
