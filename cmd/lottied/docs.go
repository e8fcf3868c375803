package main

// General API documentation for swaggo. Generate with `swag init -g cmd/lottied/docs.go`.
//
// @title           lottied API
// @version         1.0
// @description     HTTP API for loading, scheduling and rendering Lottie animations.
//
// @contact.name   lottied maintainers
// @contact.url    https://github.com/your-org/lottied
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
