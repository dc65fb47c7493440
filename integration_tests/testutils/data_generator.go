package testutils

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	playerdb "github.com/Black-And-White-Club/casino-ops/app/modules/player/infrastructure/repositories"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TestDataGenerator builds players and vendor files for integration tests.
type TestDataGenerator struct {
	faker *gofakeit.Faker
	seed  int64
}

// NewTestDataGenerator creates a new test data generator with optional seed
func NewTestDataGenerator(seed ...int64) *TestDataGenerator {
	s := time.Now().UnixNano()
	if len(seed) > 0 {
		s = seed[0]
	}
	return &TestDataGenerator{faker: gofakeit.New(uint64(s)), seed: s}
}

// VendorRow is one line of a generated vendor export.
type VendorRow struct {
	Name  string
	Email string
	Phone string
}

// VendorRows generates count rows with unique emails and ten-digit phones.
func (g *TestDataGenerator) VendorRows(count int) []VendorRow {
	rows := make([]VendorRow, count)
	for i := range rows {
		rows[i] = VendorRow{
			Name:  g.faker.Name(),
			Email: fmt.Sprintf("%d.%s", i, strings.ToLower(g.faker.Email())),
			Phone: g.faker.Numerify("555#######"),
		}
	}
	return rows
}

// VendorCSV renders rows under the Name, Email and Phone headers.
func (g *TestDataGenerator) VendorCSV(rows []VendorRow) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Name", "Email", "Phone"})
	for _, r := range rows {
		_ = w.Write([]string{r.Name, r.Email, r.Phone})
	}
	w.Flush()
	return buf.Bytes()
}

// SeedPlayer inserts a player with the given normalized email.
func (g *TestDataGenerator) SeedPlayer(ctx context.Context, db bun.IDB, email string) (*playerdb.Player, error) {
	first, last := g.faker.FirstName(), g.faker.LastName()
	player := &playerdb.Player{
		ID:          uuid.New(),
		DisplayName: first + " " + last,
		FirstName:   &first,
		LastName:    &last,
		Email:       &email,
	}
	if err := playerdb.NewRepository(db).Create(ctx, db, player); err != nil {
		return nil, err
	}
	return player, nil
}
