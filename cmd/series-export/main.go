// series-export dumps stored vegetation-index samples (or cached season
// metrics) to CSV, JSON, or restorable SQL, for analysis outside the
// service.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
	FormatSQL  ExportFormat = "sql"
)

type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	Table    string
	Format   ExportFormat
	Output   string
	Site     string
	Band     string
	Query    string
}

func main() {
	var cfg Config

	flag.StringVar(&cfg.Host, "host", "localhost", "Database host")
	flag.IntVar(&cfg.Port, "port", 5432, "Database port")
	flag.StringVar(&cfg.Database, "database", "greenwave", "Database name")
	flag.StringVar(&cfg.User, "user", "postgres", "Database user")
	flag.StringVar(&cfg.Password, "password", "", "Database password")
	flag.StringVar(&cfg.SSLMode, "sslmode", "disable", "SSL mode (disable, require, etc)")
	flag.StringVar(&cfg.Table, "table", "vi_samples", "Table to export: vi_samples or season_metrics")
	formatStr := flag.String("format", "csv", "Export format: csv, json, or sql")
	flag.StringVar(&cfg.Output, "output", "greenwave_export", "Output file base name (extension added automatically)")
	flag.StringVar(&cfg.Site, "site", "", "Only export rows for this site")
	flag.StringVar(&cfg.Band, "band", "", "Only export rows for this band")
	flag.StringVar(&cfg.Query, "query", "", "Optional extra WHERE clause (e.g., \"time > '2024-01-01'\")")
	flag.Parse()

	switch ExportFormat(*formatStr) {
	case FormatCSV, FormatJSON, FormatSQL:
		cfg.Format = ExportFormat(*formatStr)
	default:
		log.Fatalf("Invalid format: %s. Must be csv, json, or sql", *formatStr)
	}

	switch cfg.Table {
	case "vi_samples", "season_metrics":
	default:
		log.Fatalf("Invalid table: %s. Must be vi_samples or season_metrics", cfg.Table)
	}

	connStr := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Printf("Connected to database %s@%s:%d", cfg.Database, cfg.Host, cfg.Port)

	query, countQuery, args := buildQueries(cfg)

	var totalCount int64
	err = pool.QueryRow(ctx, countQuery, args...).Scan(&totalCount)
	if err != nil {
		log.Fatalf("Failed to get record count: %v", err)
	}
	log.Printf("Found %d records to export", totalCount)

	switch cfg.Format {
	case FormatCSV:
		err = exportToCSV(ctx, pool, query, args, cfg.Output+".csv", totalCount)
	case FormatJSON:
		err = exportToJSON(ctx, pool, query, args, cfg.Output+".json", totalCount)
	case FormatSQL:
		err = exportToSQL(ctx, pool, query, args, cfg.Table, cfg.Output+".sql", totalCount)
	}
	if err != nil {
		log.Fatalf("%s export failed: %v", strings.ToUpper(string(cfg.Format)), err)
	}

	log.Printf("Export completed successfully")
}

// buildQueries assembles the data and count queries. Site and band filters
// are parameterized; the free-form -query clause is appended as given.
func buildQueries(cfg Config) (query, countQuery string, args []interface{}) {
	var conds []string

	if cfg.Site != "" {
		args = append(args, cfg.Site)
		col := "sitename"
		if cfg.Table == "season_metrics" {
			col = "site_name"
		}
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if cfg.Band != "" {
		args = append(args, cfg.Band)
		conds = append(conds, fmt.Sprintf("band = $%d", len(args)))
	}
	if cfg.Query != "" {
		conds = append(conds, "("+cfg.Query+")")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	orderBy := " ORDER BY time"
	if cfg.Table == "season_metrics" {
		orderBy = " ORDER BY site_name, band, season_year"
	}

	query = "SELECT * FROM " + cfg.Table + where + orderBy
	countQuery = "SELECT COUNT(*) FROM " + cfg.Table + where
	return query, countQuery, args
}

func exportToCSV(ctx context.Context, pool *pgxpool.Pool, query string, args []interface{}, filename string, totalCount int64) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	count := int64(0)
	lastProgress := -1
	for rows.Next() {
		values, err := pgx.RowToMap(rows)
		if err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}

		record := make([]string, len(columns))
		for i, col := range columns {
			if val, ok := values[col]; ok && val != nil {
				record[i] = fmt.Sprintf("%v", val)
			}
		}

		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}

		count++
		lastProgress = logProgress(count, totalCount, lastProgress)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	log.Printf("Exported %d records to %s", count, filename)
	return nil
}

func exportToJSON(ctx context.Context, pool *pgxpool.Pool, query string, args []interface{}, filename string, totalCount int64) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString("[\n"); err != nil {
		return err
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("  ", "  ")

	count := int64(0)
	lastProgress := -1
	first := true
	for rows.Next() {
		values, err := pgx.RowToMap(rows)
		if err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}

		if !first {
			if _, err := file.WriteString(",\n"); err != nil {
				return err
			}
		}
		first = false

		if _, err := file.WriteString("  "); err != nil {
			return err
		}
		if err := encoder.Encode(values); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}

		count++
		lastProgress = logProgress(count, totalCount, lastProgress)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	if _, err := file.WriteString("\n]"); err != nil {
		return err
	}

	log.Printf("Exported %d records to %s", count, filename)
	return nil
}

func exportToSQL(ctx context.Context, pool *pgxpool.Pool, query string, args []interface{}, table, filename string, totalCount int64) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "-- greenwave %s export generated on %s\n", table, time.Now().Format(time.RFC3339))
	fmt.Fprintf(file, "-- Query: %s\n", query)
	fmt.Fprintln(file, "-- This export uses explicit column names to handle schema changes")
	fmt.Fprintln(file, "\nBEGIN;")
	fmt.Fprintln(file)

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	count := int64(0)
	lastProgress := -1

	for rows.Next() {
		values, err := pgx.RowToMap(rows)
		if err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}

		var cols []string
		var vals []string

		for col, val := range values {
			cols = append(cols, col)

			if val == nil {
				vals = append(vals, "NULL")
			} else {
				switch v := val.(type) {
				case string:
					vals = append(vals, fmt.Sprintf("'%s'", strings.ReplaceAll(v, "'", "''")))
				case time.Time:
					vals = append(vals, fmt.Sprintf("'%s'", v.Format(time.RFC3339)))
				case bool:
					vals = append(vals, fmt.Sprintf("%t", v))
				case int, int32, int64:
					vals = append(vals, fmt.Sprintf("%d", v))
				case float32, float64:
					vals = append(vals, fmt.Sprintf("%v", v))
				default:
					vals = append(vals, fmt.Sprintf("'%v'", v))
				}
			}
		}

		fmt.Fprintf(file, "INSERT INTO %s (%s) VALUES (%s);\n",
			table, strings.Join(cols, ", "), strings.Join(vals, ", "))

		count++
		lastProgress = logProgress(count, totalCount, lastProgress)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}

	fmt.Fprintln(file, "\nCOMMIT;")

	log.Printf("Exported %d records to %s", count, filename)
	return nil
}

func logProgress(count, totalCount int64, lastProgress int) int {
	if totalCount > 0 {
		progress := int(count * 100 / totalCount)
		if progress != lastProgress {
			log.Printf("Progress: %d%% (%d/%d records)", progress, count, totalCount)
		}
		return progress
	}
	if count%10000 == 0 {
		log.Printf("Processed %d records...", count)
	}
	return lastProgress
}
