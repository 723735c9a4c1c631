package cty

import (
	"strings"
	"testing"
)

const samplePLIST = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
<key>K</key>
	<dict>
		<key>Country</key>
		<string>United States</string>
		<key>Prefix</key>
		<string>K</string>
		<key>Continent</key>
		<string>NA</string>
	</dict>
<key>KL</key>
	<dict>
		<key>Country</key>
		<string>Alaska</string>
		<key>Prefix</key>
		<string>KL</string>
		<key>Continent</key>
		<string>NA</string>
	</dict>
<key>JA</key>
	<dict>
		<key>Country</key>
		<string>Japan</string>
		<key>Prefix</key>
		<string>JA</string>
		<key>Continent</key>
		<string>AS</string>
	</dict>
</dict>
</plist>`

func loadSampleDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := LoadFromReader(strings.NewReader(samplePLIST))
	if err != nil {
		t.Fatalf("load sample database: %v", err)
	}
	return db
}

func TestLookupLongestPrefixWins(t *testing.T) {
	db := loadSampleDatabase(t)
	info, ok := db.Lookup("KL7AA")
	if !ok {
		t.Fatalf("expected KL7AA to resolve")
	}
	if info.Country != "Alaska" {
		t.Fatalf("KL7AA resolved to %q, want Alaska (longest prefix)", info.Country)
	}
	info, ok = db.Lookup("K1AA")
	if !ok || info.Country != "United States" {
		t.Fatalf("K1AA resolved to %v, want United States", info)
	}
}

func TestLookupStripsPortableSuffix(t *testing.T) {
	db := loadSampleDatabase(t)
	info, ok := db.Lookup("ja1xyz/p")
	if !ok || info.Country != "Japan" {
		t.Fatalf("ja1xyz/p resolved to %v, want Japan", info)
	}
}

func TestLookupMissIsMemoized(t *testing.T) {
	db := loadSampleDatabase(t)
	if _, ok := db.Lookup("Z99ZZ"); ok {
		t.Fatalf("unexpected match for Z99ZZ")
	}
	entry, hit := db.cache["Z99ZZ"]
	if !hit || entry.ok {
		t.Fatalf("miss not memoized: %+v hit=%v", entry, hit)
	}
}

func TestCountryHook(t *testing.T) {
	db := loadSampleDatabase(t)
	country, ok := db.Country("JA1XYZ")
	if !ok || country != "Japan" {
		t.Fatalf("Country = (%q, %v), want Japan", country, ok)
	}
	if _, ok := db.Country("Z99ZZ"); ok {
		t.Fatalf("Country hit for unknown prefix")
	}
}
