package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"catalogue/internal/core/tenant"
	"catalogue/pkg/logger"
)

// CitiesChannel is the NOTIFY channel fired by the cities table trigger.
const CitiesChannel = "cities_changed"

// CityLoader lists the active cities.
type CityLoader interface {
	ListCities(ctx context.Context) ([]tenant.City, error)
}

// CityDirectory keeps the known-cities set in memory and reloads it whenever the
// registry announces a change over LISTEN/NOTIFY.
type CityDirectory struct {
	pool   *pgxpool.Pool
	loader CityLoader
	log    *logger.Logger

	mu     sync.RWMutex
	known  map[tenant.CitySlug]struct{}
	cities []tenant.City

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewCityDirectory creates a directory. pool may be nil, in which case the set is
// loaded once by Start and never refreshed.
func NewCityDirectory(pool *pgxpool.Pool, loader CityLoader, log *logger.Logger) *CityDirectory {
	if log == nil {
		log = logger.Default()
	}
	return &CityDirectory{
		pool:   pool,
		loader: loader,
		log:    log.WithComponent("city_directory"),
		known:  make(map[tenant.CitySlug]struct{}),
	}
}

// Start loads the initial set and begins listening for changes.
func (d *CityDirectory) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	d.lifecycleMu.Lock()
	if d.started {
		d.lifecycleMu.Unlock()
		return nil
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.started = true
	d.lifecycleMu.Unlock()

	if err := d.Reload(d.ctx); err != nil {
		d.Stop()
		return fmt.Errorf("load cities: %w", err)
	}

	if d.pool != nil {
		d.wg.Add(1)
		go d.listenLoop()
	}
	d.log.Infow("city directory started", "cities", len(d.Cities()))
	return nil
}

// Stop ends the listener and waits for it to exit.
func (d *CityDirectory) Stop() {
	d.lifecycleMu.Lock()
	if !d.started {
		d.lifecycleMu.Unlock()
		return
	}
	cancel := d.cancel
	d.started = false
	d.cancel = nil
	d.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	d.log.Infow("city directory stopped")
}

// Reload replaces the set with the registry's current list.
func (d *CityDirectory) Reload(ctx context.Context) error {
	cities, err := d.loader.ListCities(ctx)
	if err != nil {
		return err
	}
	d.replace(cities)
	return nil
}

func (d *CityDirectory) replace(cities []tenant.City) {
	known := make(map[tenant.CitySlug]struct{}, len(cities))
	for _, c := range cities {
		known[c.Slug] = struct{}{}
	}
	d.mu.Lock()
	d.known = known
	d.cities = cities
	d.mu.Unlock()
}

func (d *CityDirectory) IsKnownCity(_ context.Context, slug tenant.CitySlug) bool {
	if slug == "" {
		return false
	}
	d.mu.RLock()
	_, ok := d.known[slug]
	d.mu.RUnlock()
	return ok
}

// Cities returns a copy of the active cities in display order.
func (d *CityDirectory) Cities() []tenant.City {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]tenant.City, len(d.cities))
	copy(out, d.cities)
	return out
}

func (d *CityDirectory) listenLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		conn, err := d.pool.Acquire(d.ctx)
		if err != nil {
			d.log.Errorw("failed to acquire connection for LISTEN", "error", err)
			d.sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(d.ctx, "LISTEN "+CitiesChannel); err != nil {
			d.log.Errorw("failed to LISTEN", "channel", CitiesChannel, "error", err)
			conn.Release()
			d.sleep(time.Second)
			continue
		}

		// Changes made while the listener was down would be missed otherwise.
		d.handleNotification(d.ctx, "")
		d.waitForNotifications(conn)
		conn.Release()
	}
}

func (d *CityDirectory) waitForNotifications(conn *pgxpool.Conn) {
	for {
		if d.ctx.Err() != nil {
			return
		}

		ctx, cancel := context.WithTimeout(d.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if d.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				continue
			}
			d.log.Warnw("LISTEN connection lost", "error", err)
			return
		}

		d.log.Debugw("received notification", "channel", n.Channel, "payload", n.Payload)
		if n.Channel == CitiesChannel {
			d.handleNotification(d.ctx, n.Payload)
		}
	}
}

// handleNotification reloads the whole set; it is a handful of rows.
func (d *CityDirectory) handleNotification(ctx context.Context, slug string) {
	if err := d.Reload(ctx); err != nil {
		d.log.Errorw("failed to reload cities", "slug", slug, "error", err)
	}
}

func (d *CityDirectory) sleep(dur time.Duration) {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-d.ctx.Done():
	case <-t.C:
	}
}

var _ tenant.CityDirectory = (*CityDirectory)(nil)
