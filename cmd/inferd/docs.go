package main

// General API documentation for swaggo. Run `swag init -g cmd/inferd/main.go`
// to regenerate the docs package.
//
// @title           inferd API
// @version         1.0
// @description     HTTP API for local LLM serving: OpenAI-compatible inference plus native model management.
//
// @contact.name   inferd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
