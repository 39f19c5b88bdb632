package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"testing"

	"law_timeline_app_go/models"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:cli_%s?mode=memory&cache=shared", uuid.NewString())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(models.All()...))
	return database
}

func TestPromptUser(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("Acme Legal\nAmerica/Bogota\nAda\nada@acme.test\nadmin\n"))
	got := promptUser(in, io.Discard)
	assert.Equal(t, userInput{
		FirmName: "Acme Legal",
		Timezone: "America/Bogota",
		Name:     "Ada",
		Email:    "ada@acme.test",
		Role:     "admin",
	}, got)
}

func TestCreateUser(t *testing.T) {
	database := setupTestDB(t)

	admin, err := createUser(database, userInput{FirmName: "Acme Legal", Timezone: "America/Bogota", Name: "Ada", Email: "Ada@Acme.test", Role: "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "ada@acme.test", admin.Email)
	assert.Equal(t, "acme-legal", admin.Firm.Slug)

	client, err := createUser(database, userInput{FirmName: "Acme Legal", Name: "Carla", Email: "carla@client.test", Role: "client"})
	require.NoError(t, err)
	assert.Equal(t, *admin.FirmID, *client.FirmID, "the firm is reused")

	var firms int64
	require.NoError(t, database.Model(&models.Firm{}).Count(&firms).Error)
	assert.Equal(t, int64(1), firms)

	_, err = createUser(database, userInput{FirmName: "Acme Legal", Name: "Ada", Email: "ada@acme.test", Role: "lawyer"})
	assert.True(t, errors.Is(err, errors.AlreadyExists))

	_, err = createUser(database, userInput{FirmName: "Acme Legal", Name: "Zed", Email: "zed@acme.test", Role: "owner"})
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = createUser(database, userInput{Name: "Zed", Email: "zed@acme.test", Role: "staff"})
	assert.True(t, errors.Is(err, errors.NotValid))
}
