// Package service contains the application services that sit between
// the HTTP API and the stores. Services own input validation and
// transaction boundaries; handlers stay thin.
package service
