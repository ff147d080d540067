package main

// @title Colporter Inventory API
// @version 1.0
// @description Books, sales transactions and inventory count reconciliation for colporter programs.

// @host localhost:8082
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @tag.name Books
// @tag.description Book catalogue of a program

// @tag.name Transactions
// @tag.description Sales transactions

// @tag.name Counts
// @tag.description Inventory count reconciliation

// @tag.name Health
// @tag.description Health check endpoints

// @tag.name Swagger
// @tag.description Swagger documentation endpoints
