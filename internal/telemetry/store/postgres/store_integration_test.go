//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"beacon/internal/telemetry"
	"beacon/internal/telemetry/store/postgres"
	"beacon/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.pg.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "telemetry_events"))
}

func (s *PostgresStoreSuite) insert(device, session string, category telemetry.Category, key, value string) telemetry.Event {
	e := telemetry.Event{
		ProjectID:       "p1",
		DeviceID:        device,
		SessionID:       session,
		ClientTimestamp: time.Now().UnixMilli(),
		Category:        category,
		Key:             key,
		Value:           value,
	}
	s.Require().NoError(s.store.Insert(context.Background(), &e))
	return e
}

func (s *PostgresStoreSuite) TestInsertAssignsIDAndReceiveTime() {
	e := s.insert("d1", "s1", telemetry.CategoryRecord, "temp", "20")
	s.NotZero(e.ID)
	s.False(e.ServerReceivedAt.IsZero())

	e2 := s.insert("d1", "s1", telemetry.CategoryRecord, "temp", "21")
	s.Greater(e2.ID, e.ID)
}

func (s *PostgresStoreSuite) TestQueryFiltersAndOrder() {
	ctx := context.Background()
	s.insert("d1", "s1", telemetry.CategoryRecord, "temp", "20")
	s.insert("d2", "s2", telemetry.CategoryError, "disk", "full")
	s.insert("d1", "s1", telemetry.CategoryWarning, "fan", "slow")

	all, err := s.store.Query(ctx, telemetry.Filter{ProjectID: "p1"}, nil)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	for i := 1; i < len(all); i++ {
		s.False(all[i].ServerReceivedAt.Before(all[i-1].ServerReceivedAt))
	}

	d1, err := s.store.Query(ctx, telemetry.Filter{DeviceID: "d1"}, nil)
	s.Require().NoError(err)
	s.Len(d1, 2)

	errs, err := s.store.Query(ctx, telemetry.Filter{Category: telemetry.CategoryError}, nil)
	s.Require().NoError(err)
	s.Require().Len(errs, 1)
	s.Equal("disk", errs[0].Key)
}

func (s *PostgresStoreSuite) TestQueryPagination() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.insert("d1", "s1", telemetry.CategoryRecord, "temp", "20")
	}

	page, err := s.store.Query(ctx, telemetry.Filter{}, &telemetry.Page{Limit: 2, Offset: 1})
	s.Require().NoError(err)
	s.Len(page, 2)
}

func (s *PostgresStoreSuite) TestCount() {
	ctx := context.Background()
	s.insert("d1", "s1", telemetry.CategoryRecord, "temp", "20")
	s.insert("d2", "s2", telemetry.CategoryError, "disk", "full")

	n, err := s.store.Count(ctx, telemetry.Filter{Category: telemetry.CategoryError})
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func (s *PostgresStoreSuite) TestGroupCount() {
	ctx := context.Background()
	s.insert("d1", "s1", telemetry.CategoryError, "disk", "full")
	s.insert("d1", "s1", telemetry.CategoryError, "disk", "full")
	s.insert("d2", "s2", telemetry.CategoryError, "net", "down")

	groups, err := s.store.GroupCount(ctx,
		telemetry.Filter{Category: telemetry.CategoryError},
		[]string{telemetry.GroupByDevice, telemetry.GroupByKey},
	)
	s.Require().NoError(err)
	s.Require().Len(groups, 2)

	byDevice := map[string]telemetry.Group{}
	for _, g := range groups {
		byDevice[g.Fields[telemetry.GroupByDevice]] = g
	}
	s.EqualValues(2, byDevice["d1"].Count)
	s.Equal("disk", byDevice["d1"].Fields[telemetry.GroupByKey])
	s.False(byDevice["d1"].MaxReceivedAt.Before(byDevice["d1"].MinReceivedAt))
}

func (s *PostgresStoreSuite) TestGroupCountRejectsUnknownField() {
	_, err := s.store.GroupCount(context.Background(), telemetry.Filter{}, []string{"value"})
	s.Error(err)
}
