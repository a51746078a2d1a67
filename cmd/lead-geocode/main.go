// The lead-geocode binary backfills coordinates for leads created before
// the intake form captured them. It resolves each address through the same
// search service the intake form uses, one lookup per second to stay within
// the upstream rate limit.
package main

import (
	"context"
	"strconv"
	"time"

	"arealead_backend/internal/geo"
	"arealead_backend/platform/config"
	"arealead_backend/platform/db"
	"arealead_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type leadAddress struct {
	id      uuid.UUID
	address string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting lead geocode backfill")

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	geoService := geo.NewService(cfg, log)

	const batchSize = 25
	for {
		batch, err := listLeadsMissingCoordinates(ctx, pool, batchSize)
		if err != nil {
			log.Error("failed to list leads", "error", err)
			return
		}
		if len(batch) == 0 {
			log.Info("no leads left to geocode")
			return
		}

		progress := false

		for _, lead := range batch {
			suggestions, err := geoService.SearchAddress(ctx, lead.address)
			if err != nil {
				log.Error("geocode failed", "leadId", lead.id, "error", err)
				time.Sleep(time.Second)
				continue
			}
			if len(suggestions) == 0 {
				log.Info("no geocode result", "leadId", lead.id, "address", lead.address)
				time.Sleep(time.Second)
				continue
			}

			lat, err := strconv.ParseFloat(suggestions[0].Lat, 64)
			if err != nil {
				log.Error("invalid latitude", "leadId", lead.id, "value", suggestions[0].Lat)
				time.Sleep(time.Second)
				continue
			}
			lon, err := strconv.ParseFloat(suggestions[0].Lon, 64)
			if err != nil {
				log.Error("invalid longitude", "leadId", lead.id, "value", suggestions[0].Lon)
				time.Sleep(time.Second)
				continue
			}

			if err := updateLeadCoordinates(ctx, pool, lead.id, lat, lon); err != nil {
				log.Error("failed to update lead", "leadId", lead.id, "error", err)
				time.Sleep(time.Second)
				continue
			}

			log.Info("lead geocoded", "leadId", lead.id, "lat", lat, "lon", lon)
			progress = true
			time.Sleep(time.Second)
		}

		if !progress {
			log.Info("no geocode progress in batch, stopping")
			return
		}
	}
}

func listLeadsMissingCoordinates(ctx context.Context, pool *pgxpool.Pool, limit int) ([]leadAddress, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, address
		FROM leads
		WHERE latitude IS NULL OR longitude IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batch := make([]leadAddress, 0)
	for rows.Next() {
		var lead leadAddress
		if err := rows.Scan(&lead.id, &lead.address); err != nil {
			return nil, err
		}
		batch = append(batch, lead)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return batch, nil
}

func updateLeadCoordinates(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID, lat float64, lon float64) error {
	_, err := pool.Exec(ctx, `
		UPDATE leads
		SET latitude = $2, longitude = $3
		WHERE id = $1
	`, id, lat, lon)
	return err
}
