package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/spf13/cobra"
)

func newSeedCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <address>...",
		Short: "为测试地址领取新手礼包",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, store, err := opts.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			for _, raw := range args {
				addr, err := models.ParseAddress(raw)
				if err != nil {
					return err
				}
				ids, err := reg.ClaimStarterPack(cmd.Context(), addr)
				if errors.Is(err, apperr.ErrAlreadyClaimed) {
					fmt.Fprintf(out, "跳过 %s: 已领取\n", addr.Hex())
					continue
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s 获得卡牌 %v\n", addr.Hex(), ids)
			}
			return nil
		},
	}
}

func newMintCmd(opts *cliOptions) *cobra.Command {
	var to string
	var in models.MintInput

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "铸造一张卡牌",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := models.ParseAddress(to)
			if err != nil {
				return err
			}
			reg, store, err := opts.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := reg.Mint(cmd.Context(), addr, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token_id=%d\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "接收地址")
	cmd.Flags().StringVar(&in.Element, "element", "", "元素")
	cmd.Flags().IntVar(&in.Power, "power", 0, "攻击 (0-100)")
	cmd.Flags().IntVar(&in.Defense, "defense", 0, "防御 (0-100)")
	cmd.Flags().StringVar(&in.Special, "special", "", "特殊技能")
	cmd.Flags().IntVar(&in.Rarity, "rarity", 1, "稀有度 (1-5)")
	cmd.Flags().StringVar(&in.ImageURL, "image", "", "图片地址")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newShowCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <token_id>",
		Short: "查看卡牌属性",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("无效的卡牌ID: %s", args[0])
			}
			reg, store, err := opts.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			attrs, err := reg.GetCardAttributes(cmd.Context(), id)
			if err != nil {
				return err
			}
			supply, err := reg.SupplyOf(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %s power=%d defense=%d special=%q rarity=%d supply=%d\n",
				id, attrs.Element, attrs.Power, attrs.Defense, attrs.Special, attrs.Rarity, supply)
			return nil
		},
	}
}

func newOwnerCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "owner <address>",
		Short: "查看地址持有的卡牌",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := models.ParseAddress(args[0])
			if err != nil {
				return err
			}
			reg, store, err := opts.openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			cards, err := reg.Collection(cmd.Context(), addr)
			if err != nil {
				return err
			}
			claimed, err := reg.HasClaimedStarterPack(cmd.Context(), addr)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s 新手礼包: %v\n", addr.Hex(), claimed)
			for _, c := range cards {
				fmt.Fprintf(out, "  #%d x%d %s %s\n", c.TokenID, c.Balance, c.Attributes.Element, c.Attributes.Special)
			}
			return nil
		},
	}
}
