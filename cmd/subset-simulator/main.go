// subset-simulator serves a fake subset archive for development: the same
// /dates and /subset endpoints the real service exposes, backed by a
// synthetic seasonal greenness curve instead of satellite data. Point an
// ornl source at it and the whole pipeline runs without network access to
// the archive.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/khufkens/greenwave/pkg/photoperiod"
	"github.com/khufkens/greenwave/pkg/products"
)

// earthRadiusM matches the sphere the archive's sinusoidal grid uses.
const earthRadiusM = 6371007.181

type simulator struct {
	seed       int64
	years      int
	cloudProb  float64
	noiseSigma float64
}

type compositeDate struct {
	ModisDate    string `json:"modis_date"`
	CalendarDate string `json:"calendar_date"`
}

type subsetSlice struct {
	ModisDate    string    `json:"modis_date"`
	CalendarDate string    `json:"calendar_date"`
	Band         string    `json:"band"`
	Tile         string    `json:"tile"`
	ProcDate     string    `json:"proc_date"`
	Data         []float64 `json:"data"`
}

type subsetResponse struct {
	XLLCorner string        `json:"xllcorner"`
	YLLCorner string        `json:"yllcorner"`
	Cellsize  string        `json:"cellsize"`
	NRows     int           `json:"nrows"`
	NCols     int           `json:"ncols"`
	Band      string        `json:"band"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Subset    []subsetSlice `json:"subset"`
}

func main() {
	var (
		listenAddr = flag.String("listen-addr", "0.0.0.0", "Listen address")
		port       = flag.Int("port", 8200, "Listen port")
		seed       = flag.Int64("seed", 42, "RNG seed; responses are deterministic per seed")
		years      = flag.Int("years", 5, "Years of composite dates to serve")
		cloud      = flag.Float64("cloud", 0.15, "Per-pixel probability of a cloudy (fill) composite")
		noise      = flag.Float64("noise", 0.03, "Gaussian noise sigma on the scaled VI value")
	)
	flag.Parse()

	sim := &simulator{
		seed:       *seed,
		years:      *years,
		cloudProb:  *cloud,
		noiseSigma: *noise,
	}

	router := mux.NewRouter()
	router.HandleFunc("/{product}/dates", sim.handleDates).Methods("GET")
	router.HandleFunc("/{product}/subset", sim.handleSubset).Methods("GET")
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "greenwave subset simulator\nproducts: %v\n", products.IDs())
	})

	addr := fmt.Sprintf("%s:%d", *listenAddr, *port)
	log.Printf("Subset simulator listening on %s (seed %d, %d years, cloud %.2f)",
		addr, *seed, *years, *cloud)
	log.Fatal(http.ListenAndServe(addr, router))
}

func (s *simulator) handleDates(w http.ResponseWriter, r *http.Request) {
	product, err := products.Lookup(mux.Vars(r)["product"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	now := time.Now().UTC()
	var dates []compositeDate
	for year := now.Year() - s.years + 1; year <= now.Year(); year++ {
		for _, d := range product.CompositeDates(year) {
			if d.After(now) {
				break
			}
			dates = append(dates, compositeDate{
				ModisDate:    products.FormatModisDate(d),
				CalendarDate: d.Format("2006-01-02"),
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"dates": dates})
}

func (s *simulator) handleSubset(w http.ResponseWriter, r *http.Request) {
	product, err := products.Lookup(mux.Vars(r)["product"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("latitude"), 64)
	if err != nil {
		http.Error(w, "invalid latitude", http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(q.Get("longitude"), 64)
	if err != nil {
		http.Error(w, "invalid longitude", http.StatusBadRequest)
		return
	}

	bandName := q.Get("band")
	isQC := bandName == product.QCBand
	var band products.Band
	if !isQC {
		var ok bool
		band, ok = bandByLayer(product, bandName)
		if !ok {
			http.Error(w, fmt.Sprintf("product %s has no layer %q", product.ID, bandName), http.StatusBadRequest)
			return
		}
	}

	startDate, err := products.ParseModisDate(q.Get("startDate"))
	if err != nil {
		http.Error(w, "invalid startDate", http.StatusBadRequest)
		return
	}
	endDate, err := products.ParseModisDate(q.Get("endDate"))
	if err != nil {
		http.Error(w, "invalid endDate", http.StatusBadRequest)
		return
	}

	kmAB, _ := strconv.Atoi(q.Get("kmAboveBelow"))
	kmLR, _ := strconv.Atoi(q.Get("kmLeftRight"))

	res := float64(product.ResolutionM)
	nrows := int(float64(kmAB)*2000/res) + 1
	ncols := int(float64(kmLR)*2000/res) + 1

	// Lower-left corner in the sinusoidal projection.
	latRad := lat * math.Pi / 180
	lonRad := lon * math.Pi / 180
	xCenter := earthRadiusM * lonRad * math.Cos(latRad)
	yCenter := earthRadiusM * latRad
	xll := xCenter - float64(ncols)/2*res
	yll := yCenter - float64(nrows)/2*res

	resp := subsetResponse{
		XLLCorner: fmt.Sprintf("%.2f", xll),
		YLLCorner: fmt.Sprintf("%.2f", yll),
		Cellsize:  fmt.Sprintf("%.6f", res),
		NRows:     nrows,
		NCols:     ncols,
		Band:      bandName,
		Latitude:  lat,
		Longitude: lon,
	}

	for year := startDate.Year(); year <= endDate.Year(); year++ {
		for _, d := range product.CompositeDates(year) {
			if d.Before(startDate) || d.After(endDate) {
				continue
			}
			data := make([]float64, nrows*ncols)
			for pixel := range data {
				if isQC {
					data[pixel] = s.qcValue(product, lat, d, pixel)
				} else {
					data[pixel] = s.viValue(product, band, lat, d, pixel)
				}
			}
			resp.Subset = append(resp.Subset, subsetSlice{
				ModisDate:    products.FormatModisDate(d),
				CalendarDate: d.Format("2006-01-02"),
				Band:         bandName,
				Tile:         "h00v00",
				ProcDate:     d.AddDate(0, 0, 20).Format("2006002150405"),
				Data:         data,
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// viValue produces one pixel's raw integer value: the seasonal curve for
// the site latitude, Gaussian per-pixel noise, or the fill value when the
// composite is simulated as cloudy.
func (s *simulator) viValue(product products.Product, band products.Band, lat float64, date time.Time, pixel int) float64 {
	rng := s.pixelRNG(product.ID, band.Name, date, pixel)

	if rng.Float64() < s.cloudProb {
		return band.FillValue
	}

	value := seasonalCurve(lat, date) + rng.NormFloat64()*s.noiseSigma

	// Per-pixel baseline offset so the grid is not uniform.
	value += (s.pixelFraction(pixel) - 0.5) * 0.1

	scaled := value / band.ScaleFactor
	if scaled < band.ValidMin {
		scaled = band.ValidMin
	}
	if scaled > band.ValidMax {
		scaled = band.ValidMax
	}
	return math.Round(scaled)
}

// qcValue mirrors viValue's cloud decisions so the QC band agrees with the
// data band: cloudy composites get a cloudy MODLAND code, a fraction of
// the rest are marked reduced-confidence.
func (s *simulator) qcValue(product products.Product, lat float64, date time.Time, pixel int) float64 {
	// The first data band drives the cloud decision for the whole pixel.
	firstBand, _ := product.Band(product.BandNames()[0])
	rng := s.pixelRNG(product.ID, firstBand.Name, date, pixel)

	if rng.Float64() < s.cloudProb {
		return 3 // MODLAND bits 0-1 = 3, cloudy
	}
	if rng.Float64() < 0.2 {
		return 1 | 4<<2 // check-other-QA with mid usefulness, decodes marginal
	}
	return 0
}

// seasonalCurve is a deterministic greenness value in scaled physical
// units, driven by the photoperiod at the site latitude: long days push
// the canopy toward the summer maximum with a lag, short days toward the
// winter floor. Near the equator the photoperiod barely moves and the
// curve stays flat, like an evergreen site.
func seasonalCurve(lat float64, date time.Time) float64 {
	const (
		winterFloor = 0.15
		summerPeak  = 0.85
		lagDays     = 20
	)

	lagged := date.AddDate(0, 0, -lagDays)
	dl := photoperiod.Daylength(lat, lagged)

	minDL, maxDL := daylengthRange(lat, date.Year())
	if maxDL-minDL < 0.5 {
		return (winterFloor + summerPeak) / 2
	}

	rel := (dl - minDL) / (maxDL - minDL)
	// Sharpen the transition so spring green-up looks like a logistic
	// rather than a sine.
	rel = 1 / (1 + math.Exp(-8*(rel-0.5)))
	return winterFloor + (summerPeak-winterFloor)*rel
}

func daylengthRange(lat float64, year int) (minDL, maxDL float64) {
	// Solstices bound the annual daylength range; June 21 and December 21
	// are close enough for a simulator.
	june := photoperiod.Daylength(lat, time.Date(year, 6, 21, 0, 0, 0, 0, time.UTC))
	december := photoperiod.Daylength(lat, time.Date(year, 12, 21, 0, 0, 0, 0, time.UTC))
	if june < december {
		return june, december
	}
	return december, june
}

// pixelRNG returns a deterministic RNG for one (product, band, date,
// pixel) cell, so repeated requests serve identical data.
func (s *simulator) pixelRNG(productID, band string, date time.Time, pixel int) *rand.Rand {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%d", productID, band, date.Format("2006002"), pixel)
	return rand.New(rand.NewSource(s.seed ^ int64(h.Sum64())))
}

// bandByLayer resolves an archive layer name ("250m_16_days_NDVI") to its
// band description.
func bandByLayer(product products.Product, layer string) (products.Band, bool) {
	for _, name := range product.BandNames() {
		b := product.Bands[name]
		if b.Name == layer {
			return b, true
		}
	}
	return products.Band{}, false
}

// pixelFraction spreads pixels over [0,1) deterministically.
func (s *simulator) pixelFraction(pixel int) float64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "baseline|%d", pixel)
	return float64(h.Sum64()%1000) / 1000
}
