package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "partners", []string{"cnpj", "state"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"partners"}, []string{"cnpj", "state"}).WillReturnResult(3)

	rows := [][]any{{"11222333000181", "MG"}, {"22333444000192", "SP"}, {"33444555000103", "GO"}}
	n, err := CopyFrom(context.Background(), mock, "partners", []string{"cnpj", "state"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"partners"}, []string{"cnpj", "state"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"11222333000181", "MG"}}
	_, err = CopyFrom(context.Background(), mock, "partners", []string{"cnpj", "state"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO partners")
	assert.NoError(t, mock.ExpectationsWereMet())
}
