// Copyright 2025 Slidesmith
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestRecordPropagatesStorageError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO generation_results").
		WillReturnError(errors.New("disk I/O error"))

	repo := NewRepository(db)
	err = repo.Record(context.Background(), sampleResult("req-1"))

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to record generation result")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregatePropagatesStorageError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(errors.New("database is locked"))

	repo := NewRepository(db)
	_, err = repo.Aggregate(context.Background(), Filter{})

	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to aggregate totals")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecentPropagatesStorageError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT request_id").
		WillReturnError(errors.New("database is locked"))

	repo := NewRepository(db)
	_, err = repo.ListRecent(context.Background(), 10)

	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
