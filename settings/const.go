package settings

import (
	"math"
	"time"
)

const (
	EARTH_RADIUS     = 6371000.0 // meters
	TO_RADIANS       = math.Pi / 180
	TO_DEGREES       = 180 / math.Pi
	SAMPLES_PER_100M = 3.0
	MIN_SAMPLES      = 3
	COORD_PRECISION  = 3 // decimals written for enriched coordinates
	OPEN_METEO_URL   = "https://api.open-meteo.com"
	OPEN_METEO_RATE  = 80 // requests per minute
	OPEN_METEO_TRIES = 4
	OPEN_METEO_WAIT  = 10 * time.Second
	MAX_SAMPLE_GAP   = 5 * time.Second
)

const (
	MISSING_Z_ZERO = "zero"
	MISSING_Z_KEEP = "keep"

	SOURCE_RASTER     = "raster"
	SOURCE_OPEN_METEO = "open-meteo"
)
