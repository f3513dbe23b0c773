package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID   uint   `gorm:"primarykey"`
	Code string `gorm:"size:10;uniqueIndex"`
}

func TestOpen_SQLiteTranslatesDuplicateKey(t *testing.T) {
	db, err := Open(Options{Driver: "sqlite", Path: "file:database_test?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db, &widget{}))

	require.NoError(t, db.Create(&widget{Code: "abc"}).Error)
	err = db.Create(&widget{Code: "abc"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "oracle"})
	assert.Error(t, err)
}
