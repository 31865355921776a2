package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cryptowallet/internal/config"
	"cryptowallet/internal/infrastructure/lock"
	"cryptowallet/internal/logger"
	"cryptowallet/internal/model"
	"cryptowallet/internal/repository"
	"cryptowallet/pkg/idgen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 6

type AccountService struct {
	ledger
}

func NewAccountService(db *gorm.DB, locker lock.Locker, cfg *config.Config) *AccountService {
	return &AccountService{ledger: newLedger(db, locker, cfg)}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterRequest struct {
	Email        string
	Password     string
	Name         string
	ReferralCode string
}

// Register 注册账户并初始化零余额；邀请码有效时记录邀请关系，无效的邀请码直接忽略
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) (*model.Account, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalidInput("邮箱格式错误")
	}
	if name == "" {
		return nil, invalidInput("名称不能为空")
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalidInput(fmt.Sprintf("密码至少 %d 位", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError("生成密码哈希", err)
	}

	account := &model.Account{
		Email:            email,
		Name:             name,
		PasswordHash:     string(hash),
		Role:             model.RoleUser,
		Status:           model.AccountStatusActive,
		ReferralCode:     idgen.ReferralCode(),
		ReferralEarnings: decimal.Zero,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		exists, err := s.accountRepo.EmailExists(ctx, tx, email, 0)
		if err != nil {
			return err
		}
		if exists {
			return ErrEmailTaken
		}

		if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
			referrer, err := s.accountRepo.GetByReferralCode(ctx, tx, code)
			switch {
			case err == nil:
				account.ReferredBy = int64Ptr(referrer.ID)
			case !errors.Is(err, repository.ErrAccountNotFound):
				return err
			}
		}

		if err := s.accountRepo.Create(ctx, tx, account); err != nil {
			return fmt.Errorf("创建账户失败: %w", err)
		}
		if err := s.balanceRepo.CreateZeroRows(ctx, tx, account.ID); err != nil {
			return fmt.Errorf("初始化余额失败: %w", err)
		}
		if account.ReferredBy != nil {
			if err := s.accountRepo.IncrementReferralCount(ctx, tx, *account.ReferredBy); err != nil {
				return fmt.Errorf("更新邀请人数失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, translateStoreError("注册", err)
	}

	logger.Log.Info("账户注册成功", zap.Int64("account_id", account.ID), zap.String("email", email))
	return account, nil
}

// Authenticate 校验邮箱密码，banned / suspended 账户拒绝登录
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.Account, error) {
	account, err := s.accountRepo.GetByEmail(ctx, nil, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: 邮箱或密码错误", ErrUnauthorized)
		}
		return nil, internalError("查询账户", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: 邮箱或密码错误", ErrUnauthorized)
	}
	if !account.CanLogin() {
		return nil, fmt.Errorf("%w: 账户状态为 %s", ErrForbidden, account.Status)
	}
	return account, nil
}

func (s *AccountService) ChangePassword(ctx context.Context, accountID int64, current, next string) error {
	account, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)); err != nil {
		return fmt.Errorf("%w: 当前密码错误", ErrUnauthorized)
	}
	if len(next) < minPasswordLength {
		return invalidInput(fmt.Sprintf("密码至少 %d 位", minPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return internalError("生成密码哈希", err)
	}
	return translateStoreError("修改密码", s.accountRepo.UpdatePassword(ctx, nil, accountID, string(hash)))
}

type AccountView struct {
	*model.Account
	Balances model.Balances `json:"balances"`
}

func (s *AccountService) GetAccount(ctx context.Context, id int64) (*AccountView, error) {
	account, err := s.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	balances, err := s.balances(ctx, nil, id)
	if err != nil {
		return nil, internalError("查询余额", err)
	}
	return &AccountView{Account: account, Balances: balances}, nil
}

func (s *AccountService) Balances(ctx context.Context, id int64) (model.Balances, error) {
	if _, err := s.loadAccount(ctx, id); err != nil {
		return nil, err
	}
	balances, err := s.balances(ctx, nil, id)
	if err != nil {
		return nil, internalError("查询余额", err)
	}
	return balances, nil
}

// SetStatus 管理员修改账户状态
func (s *AccountService) SetStatus(ctx context.Context, adminID, id int64, status, reason string) error {
	if !model.IsValidAccountStatus(status) {
		return invalidInput("账户状态不合法")
	}
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if adminID == id {
		return invalidInput("不能修改自己的状态")
	}
	if err := s.accountRepo.UpdateStatus(ctx, nil, id, status, strings.TrimSpace(reason)); err != nil {
		return translateStoreError("修改账户状态", err)
	}
	logger.Log.Info("账户状态已修改", zap.Int64("account_id", id), zap.Int64("admin_id", adminID), zap.String("status", status))
	return nil
}

// EditProfile 管理员修改名称和邮箱，余额只能通过账本操作变动
func (s *AccountService) EditProfile(ctx context.Context, adminID, id int64, name, email string) (*model.Account, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, invalidInput("名称不能为空")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalidInput("邮箱格式错误")
	}
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	exists, err := s.accountRepo.EmailExists(ctx, nil, email, id)
	if err != nil {
		return nil, internalError("校验邮箱", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	if err := s.accountRepo.UpdateProfile(ctx, nil, id, name, email); err != nil {
		return nil, translateStoreError("修改账户资料", err)
	}
	return s.loadAccount(ctx, id)
}

type AccountPage struct {
	List     []*model.Account `json:"list"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

func (s *AccountService) ListAccounts(ctx context.Context, adminID int64, page, pageSize int) (*AccountPage, error) {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)
	list, total, err := s.accountRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, internalError("查询账户列表", err)
	}
	return &AccountPage{List: list, Total: total, Page: page, PageSize: pageSize}, nil
}

type ReferredUser struct {
	ID        int64           `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Earnings  decimal.Decimal `json:"earnings"`
	CreatedAt string          `json:"created_at"`
}

type ReferralSummary struct {
	ReferralCode  string          `json:"referral_code"`
	ReferralCount int64           `json:"referral_count"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	Referred      []*ReferredUser `json:"referred"`
}

// Referrals 邀请码、被邀请人以及按人汇总的邀请收益
func (s *AccountService) Referrals(ctx context.Context, id int64) (*ReferralSummary, error) {
	account, err := s.loadAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	referred, err := s.accountRepo.ListReferred(ctx, id)
	if err != nil {
		return nil, internalError("查询被邀请人", err)
	}
	rewards, err := s.transactionRepo.ListByAccountAndKind(ctx, id, model.TransactionKindReferral)
	if err != nil {
		return nil, internalError("查询邀请奖励", err)
	}

	total := decimal.Zero
	perReferee := make(map[int64]decimal.Decimal)
	for _, r := range rewards {
		total = total.Add(r.Amount)
		if meta := r.Meta.Data().Referral; meta != nil {
			perReferee[meta.RefereeID] = perReferee[meta.RefereeID].Add(r.Amount)
		}
	}

	summary := &ReferralSummary{
		ReferralCode:  account.ReferralCode,
		ReferralCount: account.ReferralCount,
		TotalEarnings: total,
		Referred:      make([]*ReferredUser, 0, len(referred)),
	}
	for _, u := range referred {
		summary.Referred = append(summary.Referred, &ReferredUser{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			Earnings:  perReferee[u.ID],
			CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return summary, nil
}
