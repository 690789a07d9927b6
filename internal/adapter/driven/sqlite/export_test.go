package sqlite

// SetupTestDB exposes the in-memory test database to external test packages.
var SetupTestDB = setupTestDB

// SeedOwner exposes seedOwner to external test packages.
var SeedOwner = seedOwner
