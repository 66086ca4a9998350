package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	catalogx "github.com/tanpawarit/recipe-basket-agent/agent/catalog"
	knowledgex "github.com/tanpawarit/recipe-basket-agent/agent/knowledge"
	saleeventx "github.com/tanpawarit/recipe-basket-agent/agent/saleevent"
	sessionx "github.com/tanpawarit/recipe-basket-agent/agent/session"
	"github.com/tanpawarit/recipe-basket-agent/agent/vectorstore"
	configx "github.com/tanpawarit/recipe-basket-agent/pkg/config"
	_ "github.com/tanpawarit/recipe-basket-agent/pkg/logger/autoload"
	mealdbx "github.com/tanpawarit/recipe-basket-agent/pkg/mealdb"
	openaix "github.com/tanpawarit/recipe-basket-agent/pkg/openaix"
)

type AppConfig struct {
	UserName string `envconfig:"USER_NAME" split_words:"true" required:"true"`
	// Mode selects what this process does: chat (default), load, or
	// announce-sale.
	Mode string `envconfig:"MODE" split_words:"true" default:"chat"`
}

func main() {
	appCfg := configx.MustNew[AppConfig]("")

	openaiClient := openaix.MustNew(*configx.MustNew[openaix.Config]("OPENAI"))

	db, err := catalogx.Connect(*configx.MustNew[catalogx.Config]("CATALOG"))
	if err != nil {
		log.Fatal().Err(err).Msg("connect catalog")
	}
	defer db.Close()
	store := catalogx.NewStore(db)

	ctx := context.Background()

	switch appCfg.Mode {
	case "chat":
		runChat(ctx, appCfg, store, db, openaiClient)
	case "load":
		runLoad(ctx, store, openaiClient)
	case "announce-sale":
		runAnnounceSale(ctx, store, openaiClient)
	default:
		log.Fatal().Str("mode", appCfg.Mode).Msg("unknown mode")
	}
}

func runChat(ctx context.Context, appCfg *AppConfig, store *catalogx.Store, db *bun.DB, openaiClient *openaix.Client) {
	ingredientIx := vectorstore.NewIndex("ingredients", catalogx.NewIngredientDescriptionSource(db), openaiClient)
	mealIx := vectorstore.NewIndex("meals", catalogx.NewMealDescriptionSource(db), openaiClient)
	instructionIx := vectorstore.NewIndex("instructions", catalogx.NewMealInstructionsSource(db), openaiClient)
	for _, ix := range []*vectorstore.Index{ingredientIx, mealIx, instructionIx} {
		if err := ix.Refresh(ctx); err != nil {
			log.Fatal().Err(err).Msg("refresh index")
		}
	}
	indexes := sessionx.Indexes{
		Ingredients:  ingredientIx,
		Meals:        mealIx,
		Instructions: instructionIx,
	}

	controller, err := sessionx.New(ctx, openaiClient, openaiClient, store, store, indexes, sessionx.Config{
		UserName: appCfg.UserName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open session")
	}

	fmt.Printf("Hello %s! Ask about meals and ingredients; type 'checkout' to buy, 'exit' to quit.\n", appCfg.UserName)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return
		case line == "checkout":
			receipt, err := controller.Checkout(ctx)
			if err != nil {
				fmt.Printf("checkout failed: %v\n", err)
				continue
			}
			fmt.Printf("Purchased %d items for €%.2f. Thanks!\n", len(receipt.Purchases), receipt.Total)
		default:
			answer, err := controller.AddUserMessage(ctx, line)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println(answer)
		}
	}
}

func runLoad(ctx context.Context, store *catalogx.Store, openaiClient *openaix.Client) {
	meals, err := mealdbx.NewClient(*configx.MustNew[mealdbx.Config]("MEALDB"))
	if err != nil {
		log.Fatal().Err(err).Msg("mealdb client")
	}
	loader := knowledgex.NewLoader(meals, store, openaiClient, openaiClient, *configx.MustNew[knowledgex.Config]("LOADER"))
	if err := loader.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("catalogue crawl failed")
	}
}

func runAnnounceSale(ctx context.Context, store *catalogx.Store, openaiClient *openaix.Client) {
	notifier := saleeventx.MustNewWebhookNotifier(*configx.MustNew[saleeventx.WebhookConfig]("SALE_WEBHOOK"))
	agent := saleeventx.NewAgent(store, store, openaiClient, notifier)
	if _, err := agent.Announce(ctx); err != nil {
		log.Fatal().Err(err).Msg("sale announcement failed")
	}
}
