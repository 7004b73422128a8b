package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/duitku/backend/internal/database"
	"github.com/duitku/backend/internal/services"
	"github.com/spf13/viper"
)

func main() {
	userID := flag.String("user", "", "owner id")
	year := flag.Int("year", time.Now().Year(), "year")
	month := flag.Int("month", int(time.Now().Month()), "month (1-12)")
	flag.Parse()

	if *userID == "" || *month < 1 || *month > 12 {
		flag.Usage()
		os.Exit(2)
	}

	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	database.InitDatabase()
	defer database.CloseDB()
	rdb := database.InitRedis()

	service := services.NewSummaryService(database.GetDB(), rdb)
	summary, err := service.GetMonthlySummary(context.Background(), *userID, *year, time.Month(*month))
	if err != nil {
		log.Fatalf("Summary failed: %v", err)
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatalf("Encoding failed: %v", err)
	}
	os.Stdout.Write(append(out, '\n'))
}
