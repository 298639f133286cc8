package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"

	"github.com/galleria/goapi/base/ctx"
	"github.com/galleria/goapi/base/database/mongoclient"
	"github.com/galleria/goapi/base/log"
	bValidator "github.com/galleria/goapi/base/validator"
	"github.com/galleria/goapi/domain"
	"github.com/galleria/goapi/domain/bank"
	mmiddleware "github.com/galleria/goapi/middleware"
	"github.com/galleria/goapi/service/custody"
	auction_delivery "github.com/galleria/goapi/stores/auction/delivery/http"
	auction_repository "github.com/galleria/goapi/stores/auction/repository"
	auction_usecase "github.com/galleria/goapi/stores/auction/usecase"
	auth_delivery "github.com/galleria/goapi/stores/auth/delivery/http"
	auth_middleware "github.com/galleria/goapi/stores/auth/delivery/http/middleware"
	auth_usecase "github.com/galleria/goapi/stores/auth/usecase"
	bank_delivery "github.com/galleria/goapi/stores/bank/delivery/http"
	bank_repository "github.com/galleria/goapi/stores/bank/repository"
	bank_usecase "github.com/galleria/goapi/stores/bank/usecase"
	withdrawauth_usecase "github.com/galleria/goapi/stores/withdrawauth/usecase"
)

func init() {
	viper.SetConfigType("yaml")
	viper.SetConfigFile(`infra/configs/config.yaml`)
	err := viper.ReadInConfig()
	if err != nil {
		panic(err)
	}

	if viper.GetBool(`debug`) {
		log.Log().Info("Service RUN on DEBUG mode")
	}
}

func main() {
	// init echo
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{}))
	e.Use(middleware.RequestID())
	middL := mmiddleware.InitMiddleware()
	e.Use(middL.ResponseLogger())
	e.Use(middL.AddContext())
	e.Use(middleware.CORS())
	e.Validator = bValidator.NewCustomValidator(validator.New())

	context := ctx.Background()

	admin := domain.Address(viper.GetString("admin.address"))
	engineAddr := domain.Address(viper.GetString("auction.address"))
	bankAddr := domain.Address(viper.GetString("bank.address"))
	paymentAsset := domain.Address(viper.GetString("bank.paymentAsset"))

	// optional transaction archive
	var archive bank.TransactionArchive
	if uri := viper.GetString("mongo.uri"); uri != "" {
		context.Info("init mongo")
		mongoClient := mongoclient.MustConnectMongoClient(uri, viper.GetString("mongo.dbName"), viper.GetBool("mongo.setSafe"))
		archive = bank_repository.NewTransactionArchive(mongoClient)
	}

	// in-process custody registries back the local deployment mode
	assetLedger := custody.NewAssetLedger()
	tokenVault := custody.NewTokenVault()

	bankFeed := domain.NewEventFeed()
	bankUsecase := bank_usecase.NewBank(&bank_usecase.BankCfg{
		Repo:    bank_repository.NewLedger(),
		Tokens:  tokenVault.Bound(bankAddr),
		Archive: archive,
		Feed:    bankFeed,
		Admin:   admin,
		Address: bankAddr,
	})

	whitelist := withdrawauth_usecase.NewWhitelist(admin, bankFeed)
	if err := bankUsecase.SetWithdrawAuthorization(context, admin, whitelist); err != nil {
		context.WithField("err", err).Panic("fail to set withdraw authorization")
	}

	auctionUsecase := auction_usecase.NewEngine(&auction_usecase.EngineCfg{
		Repo:                       auction_repository.New(),
		Assets:                     assetLedger,
		Bank:                       bankUsecase,
		Tokens:                     tokenVault.Bound(engineAddr),
		Feed:                       domain.NewEventFeed(),
		Admin:                      admin,
		Address:                    engineAddr,
		PaymentAsset:               paymentAsset,
		AuctioneerCut:              viper.GetInt64("auction.cut"),
		AuctioneerDelayedCancelCut: viper.GetInt64("auction.delayedCancelCut"),
	})

	// the engine settles bids out of bidders' ledger balances
	if err := bankUsecase.AddAffiliate(context, admin, engineAddr); err != nil {
		context.WithField("err", err).Panic("fail to register engine as bank affiliate")
	}

	auth := auth_usecase.New(viper.GetString("auth.jwtSecret"), viper.GetDuration("auth.tokenTTL"))
	authMiddleware := auth_middleware.New(auth, viper.GetStringSlice("admin.addresses"))

	auth_delivery.New(e, auth, viper.GetString("auth.relaySecret"))
	auction_delivery.New(e, auctionUsecase, int32(viper.GetInt("bank.paymentAssetDecimals")), authMiddleware)
	bank_delivery.New(e, bankUsecase, whitelist, archive, authMiddleware)

	e.GET("/check", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"address": c.Get("address").(domain.Address),
		})
	}, authMiddleware.Auth())

	go func() {
		if err := e.Start(viper.GetString("server.address")); err != nil && err != http.ErrServerClosed {
			log.Log().WithField("err", err).Error("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-quit
	log.Log().WithField("signal", sig).Info("received signal")
	sctx, cancel := ctx.WithTimeout(context, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Log().WithField("err", err).Error("shutting down the server")
	} else {
		log.Log().Info("shutdown server successfully")
	}
}
