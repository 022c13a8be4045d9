package idlescan

import (
	"testing"

	"github.com/doublegate/prortip/pkg/models"
)

func TestZombiePoolBestPicksHighestQuality(t *testing.T) {
	pool := NewZombiePool()
	pool.Update(models.ZombieCandidate{IP: "10.0.0.1", QualityScore: 0.75})
	pool.Update(models.ZombieCandidate{IP: "10.0.0.2", QualityScore: 0.95})
	pool.Update(models.ZombieCandidate{IP: "10.0.0.3", QualityScore: 0.80})

	best, err := pool.Best()
	if err != nil {
		t.Fatalf("Best error = %v", err)
	}

	if best.IP != "10.0.0.2" {
		t.Errorf("Best().IP = %q, want 10.0.0.2", best.IP)
	}
}

func TestZombiePoolExcludesBelowThreshold(t *testing.T) {
	pool := NewZombiePool()
	pool.Update(models.ZombieCandidate{IP: "10.0.0.1", QualityScore: 0.5})

	if _, err := pool.Best(); err != ErrNoQualifiedZombies {
		t.Errorf("Best error = %v, want ErrNoQualifiedZombies", err)
	}
}

func TestZombiePoolSweepEvictsBelowThreshold(t *testing.T) {
	pool := NewZombiePool()
	pool.Update(models.ZombieCandidate{IP: "10.0.0.1", QualityScore: 0.9})
	pool.Update(models.ZombieCandidate{IP: "10.0.0.2", QualityScore: 0.3})

	pool.Update(models.ZombieCandidate{IP: "10.0.0.1", QualityScore: 0.9})

	// Degrade the second candidate below threshold and sweep.
	pool.Update(models.ZombieCandidate{IP: "10.0.0.2", QualityScore: 0.1})

	evicted := pool.Sweep()
	if len(evicted) != 1 || evicted[0] != "10.0.0.2" {
		t.Errorf("Sweep evicted = %v, want [10.0.0.2]", evicted)
	}

	if _, err := pool.Best(); err != nil {
		t.Fatalf("Best error = %v, want survivor 10.0.0.1", err)
	}
}

func TestZombiePoolEvict(t *testing.T) {
	pool := NewZombiePool()
	pool.Update(models.ZombieCandidate{IP: "10.0.0.1", QualityScore: 0.9})
	pool.Evict("10.0.0.1")

	if _, err := pool.Best(); err != ErrNoQualifiedZombies {
		t.Errorf("Best error after evict = %v, want ErrNoQualifiedZombies", err)
	}
}
