package main

// @title           Retail Operations API
// @version         1.0
// @description     Multi-branch retail backend: account and inventory approvals, sales, product validity and analytics.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	Execute()
}
