package timescaledb

const createTableSQL = `
CREATE TABLE IF NOT EXISTS vi_samples (
    time timestamp WITH TIME ZONE NOT NULL,
    sitename text NULL,
    source text NULL,
    product text NULL,
    band text NULL,
    pixelindex int NULL,
    value float8 NULL,
    rawvalue float8 NULL,
    qcrank int NULL,
    compositedoy int NULL,
    tile text NULL,
    procdate text NULL,
    subsetrows int NULL,
    subsetcols int NULL,
    cellsizem float8 NULL,
    xllcorner float8 NULL,
    yllcorner float8 NULL,
    runid text NULL
);`

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

const createHypertableSQL = `SELECT create_hypertable('vi_samples', 'time', if_not_exists => true);`

const createIndexesSQL = `
CREATE INDEX IF NOT EXISTS vi_samples_site_band_time_idx ON vi_samples (sitename, band, time DESC);
CREATE INDEX IF NOT EXISTS vi_samples_pixel_idx ON vi_samples (sitename, band, pixelindex, time);
`

// Composites arrive at most once per 16 days per pixel, so a plain view over
// the hypertable is cheap enough; no continuous aggregate needed.
const dropLatestViewSQL = `DROP VIEW IF EXISTS vi_samples_latest;`

const createLatestViewSQL = `CREATE VIEW vi_samples_latest AS
SELECT sitename,
       product,
       band,
       MAX(time) AS latest_time,
       COUNT(*) AS sample_count,
       COUNT(DISTINCT pixelindex) AS pixel_count
FROM vi_samples
GROUP BY sitename, product, band;`
