package repository

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"farmmarket/internal/database"
	"farmmarket/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(testDB, zap.NewNop()); err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	code := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
	os.Exit(code)
}

func requireDB(t *testing.T) *sql.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres container not started in short mode")
	}
	return testDB
}

func seedCategory(t *testing.T, db DBTX) *domain.Category {
	t.Helper()
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        "Category " + uuid.NewString(),
		Description: "seasonal produce",
		CreatedAt:   time.Now().UTC(),
	}
	if err := NewCategoryRepository(db).Create(context.Background(), category); err != nil {
		t.Fatalf("failed to seed category: %v", err)
	}
	return category
}

func seedProduct(t *testing.T, db DBTX, price string, stock int) *domain.Product {
	t.Helper()
	category := seedCategory(t, db)
	now := time.Now().UTC().Truncate(time.Microsecond)
	product := &domain.Product{
		ID:                uuid.New(),
		Name:              "Heirloom tomatoes",
		Description:       "Vine ripened",
		Store:             "Green Acres",
		Location:          "Nakuru",
		Price:             decimal.RequireFromString(price),
		CategoryID:        category.ID,
		QuantityAvailable: stock,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := NewProductRepository(db).Create(context.Background(), product); err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return product
}
