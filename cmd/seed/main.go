// Command seed loads a small development dataset: two companies, a handful
// of staff, and a week of menu items. Idempotence is not a goal; run it
// against a fresh database.
package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nourishbox/api/internal/auth"
	"github.com/nourishbox/api/internal/config"
	"github.com/nourishbox/api/internal/enum"
	"github.com/nourishbox/api/internal/model"
	"github.com/nourishbox/api/internal/repository"
)

func main() {
	zl, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("config", "error", err)
	}

	repo, err := repository.New(cfg.DatabaseURI)
	if err != nil {
		logger.Fatalw("database", "error", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := seed(ctx, repo); err != nil {
		logger.Fatalw("seed", "error", err)
	}
	logger.Info("seed complete")
}

func seed(ctx context.Context, repo *repository.Postgres) error {
	weekdays := []int32{1, 2, 3, 4, 5}

	companies := []model.Company{
		{
			Name: "TechHub Lagos", Email: "billing@techhub.example.com",
			Phone: "08012345678", Address: "14 Admiralty Way, Lekki",
			CompanyCode: "THL", PaymentModel: enum.PaymentModelCompanyPaysAll,
			BillingDay: 1, IsActive: true,
		},
		{
			Name: "Marina Finance", Email: "accounts@marinafin.example.com",
			Phone: "08087654321", Address: "3 Marina Road, Lagos Island",
			CompanyCode: "MFN", PaymentModel: enum.PaymentModelSharedPercentage,
			BillingDay: 1, IsActive: true,
		},
	}

	for ci := range companies {
		companyID, err := repo.CreateCompany(ctx, &companies[ci])
		if err != nil {
			return fmt.Errorf("create company %s: %w", companies[ci].Name, err)
		}

		for i := 1; i <= 3; i++ {
			hash, err := auth.HashPassword("password123")
			if err != nil {
				return err
			}
			email := fmt.Sprintf("staff%d@%s.example.com", i, companies[ci].CompanyCode)
			role := enum.RoleStaff
			if i == 1 {
				role = enum.RoleCompanyAdmin
			}
			_, err = repo.CreateStaff(ctx, &model.Staff{
				Email:        email,
				PasswordHash: hash,
				Name:         fmt.Sprintf("%s Staff %d", companies[ci].CompanyCode, i),
				Phone:        fmt.Sprintf("0701%07d", ci*100+i),
				StaffCode:    fmt.Sprintf("%s-%03d", companies[ci].CompanyCode, i),
				CompanyID:    companyID,
				Role:         role,
				IsOnboarded:  true,
				IsActive:     true,
			})
			if err != nil {
				return fmt.Errorf("create staff %s: %w", email, err)
			}
		}
	}

	capTen := int32(10)
	meals := []model.Meal{
		{
			Name: "Jollof Rice with Grilled Chicken", Category: "Lunch", Cuisine: "Nigerian",
			Calories: 650, Protein: 42, Carbs: 68, Fats: 18, Fiber: 4, Sugar: 6, Sodium: 890,
			Ingredients: []string{"rice", "tomato", "chicken", "bell pepper"},
			BasePrice:   350000, IsAvailable: true, AvailableDays: weekdays,
		},
		{
			Name: "Egusi Soup with Pounded Yam", Category: "Lunch", Cuisine: "Nigerian",
			Calories: 720, Protein: 35, Carbs: 82, Fats: 28, Fiber: 7, Sugar: 3, Sodium: 760,
			Ingredients: []string{"egusi", "spinach", "yam", "beef"},
			BasePrice:   420000, IsAvailable: true, AvailableDays: weekdays,
		},
		{
			Name: "Grilled Fish Salad", Category: "Lunch", Cuisine: "Continental",
			Calories: 480, Protein: 38, Carbs: 22, Fats: 24, Fiber: 9, Sugar: 8, Sodium: 520,
			Ingredients: []string{"tilapia", "lettuce", "avocado", "tomato"},
			BasePrice:   450000, IsAvailable: true, AvailableDays: weekdays,
			MaxDailyCapacity: &capTen,
		},
		{
			Name: "Moi Moi and Akamu", Category: "Breakfast", Cuisine: "Nigerian",
			Calories: 420, Protein: 22, Carbs: 58, Fats: 10, Fiber: 6, Sugar: 12, Sodium: 430,
			Ingredients: []string{"beans", "pepper", "corn"},
			BasePrice:   250000, IsAvailable: true, AvailableDays: []int32{1, 3, 5},
		},
	}

	for i := range meals {
		if _, err := repo.CreateMeal(ctx, &meals[i]); err != nil {
			return fmt.Errorf("create meal %s: %w", meals[i].Name, err)
		}
	}

	return nil
}
