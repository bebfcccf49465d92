package mocks

//go:generate mockgen -destination=./mock_broker.go -package=mocks github.com/rxtech-lab/argo-engine/internal/broker Broker,OrderGateway
//go:generate mockgen -destination=./mock_strategy.go -package=mocks github.com/rxtech-lab/argo-engine/internal/strategy Strategy
//go:generate mockgen -destination=./mock_ordermanager.go -package=mocks github.com/rxtech-lab/argo-engine/internal/ordermanager OrderManager
