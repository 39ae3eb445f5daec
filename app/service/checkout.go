package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/baseurl"
	"github.com/vibast-solutions/ms-go-checkout/app/currency"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-checkout/app/guard"
	"github.com/vibast-solutions/ms-go-checkout/app/provider"
	"github.com/vibast-solutions/ms-go-checkout/app/repository"
	"github.com/vibast-solutions/ms-go-checkout/config"
)

const (
	defaultListLimit = int32(100)
	maxListLimit     = int32(500)
	defaultBatchSize = int32(100)
	txRefPrefix      = "chk-"

	maxErrorMessageBytes = 1024
)

type createCheckoutRequest interface {
	GetProvider() string
	GetStudentId() uint64
	GetChatId() string
	GetAmount() decimal.NullDecimal
	GetCurrency() string
	GetMonths() []string
	GetReturnUrl() string
	GetCallbackUrl() string
	GetMetadata() map[string]string
	GetMode() string
	GetOrigin() baseurl.Request
}

type listCheckoutsRequest interface {
	GetStudentId() uint64
	GetHasStatus() bool
	GetStatus() int32
	GetProvider() int32
	GetLimit() int32
	GetOffset() int32
}

type checkoutAttemptRepository interface {
	CreateActive(ctx context.Context, attempt *entity.CheckoutAttempt, staleBefore time.Time) error
	Transition(ctx context.Context, attempt *entity.CheckoutAttempt, fromStatus int32) error
	FindByTxRef(ctx context.Context, txRef string) (*entity.CheckoutAttempt, error)
	List(ctx context.Context, filter repository.CheckoutAttemptFilter) ([]*entity.CheckoutAttempt, error)
	ListStale(ctx context.Context, status int32, createdBefore time.Time, limit int32) ([]*entity.CheckoutAttempt, error)
}

type checkoutEventRepository interface {
	Create(ctx context.Context, event *entity.CheckoutEvent) error
}

type studentRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Student, error)
	FindByChatID(ctx context.Context, chatID string, limit int32) ([]*entity.Student, error)
}

type checkoutGuard interface {
	CheckRateLimit(ctx context.Context, studentID uint64) error
	CheckDuplicate(ctx context.Context, studentID uint64, amount decimal.Decimal, currency string) error
	WindowStart() time.Time
}

type adapterRegistry interface {
	Get(code int32) (provider.Adapter, error)
}

type CheckoutResult struct {
	TxRef       string
	CheckoutURL string
	Attempt     *entity.CheckoutAttempt
}

type CheckoutService struct {
	attemptRepo checkoutAttemptRepository
	eventRepo   checkoutEventRepository
	students    studentRepository
	guard       checkoutGuard
	adapters    adapterRegistry
	policy      currency.Policy
	checkoutCfg config.CheckoutConfig
	baseURLCfg  baseurl.Config
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewCheckoutService(
	attemptRepo checkoutAttemptRepository,
	eventRepo checkoutEventRepository,
	students studentRepository,
	attemptGuard checkoutGuard,
	adapters adapterRegistry,
	checkoutCfg config.CheckoutConfig,
	baseURLCfg baseurl.Config,
) *CheckoutService {
	return &CheckoutService{
		attemptRepo: attemptRepo,
		eventRepo:   eventRepo,
		students:    students,
		guard:       attemptGuard,
		adapters:    adapters,
		policy:      currency.NewPolicy(checkoutCfg.HomeCurrency),
		checkoutCfg: checkoutCfg,
		baseURLCfg:  baseURLCfg,
		logger:      factory.NewModuleLogger("checkout-service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *CheckoutService) CreateCheckout(ctx context.Context, req createCheckoutRequest) (*CheckoutResult, error) {
	providerCode, ok := entity.ParseProvider(req.GetProvider())
	if !ok {
		return nil, validationError("provider must be one of: card, mobileMoney")
	}
	intent, ok := entity.ParseIntent(req.GetMode())
	if !ok {
		return nil, validationError("mode must be one of: tuition, deposit")
	}

	student, err := s.resolveStudent(ctx, req.GetStudentId(), req.GetChatId())
	if err != nil {
		return nil, err
	}

	amount, err := s.resolveAmount(req.GetAmount(), student)
	if err != nil {
		return nil, err
	}
	code, err := s.resolveCurrency(req.GetCurrency(), student)
	if err != nil {
		return nil, err
	}

	if err := s.checkCurrency(providerCode, code); err != nil {
		return nil, err
	}

	if err := s.guard.CheckDuplicate(ctx, student.ID, amount, code); err != nil {
		return nil, mapGuardError(err)
	}
	if err := s.guard.CheckRateLimit(ctx, student.ID); err != nil {
		return nil, mapGuardError(err)
	}

	adapter, err := s.adapters.Get(providerCode)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, newCheckoutError(CodeGatewayConfiguration, ErrGatewayConfiguration, "payment provider is not available")
		}
		return nil, err
	}
	if err := adapter.CheckConfiguration(); err != nil {
		s.logger.WithError(err).WithField("provider", entity.ProviderName(providerCode)).Error("payment gateway is not configured")
		return nil, newCheckoutError(CodeGatewayConfiguration, ErrGatewayConfiguration, "")
	}

	origin := baseurl.Resolve(s.baseURLCfg, req.GetOrigin())
	returnURL := baseurl.Join(origin.Origin, firstNonEmpty(req.GetReturnUrl(), s.checkoutCfg.ReturnPath))
	if !baseurl.IsAbsoluteHTTPURL(returnURL) {
		return nil, validationError("returnUrl must resolve to an absolute http(s) url")
	}
	callbackURL := ""
	if providerCode == entity.ProviderCard {
		callbackURL = baseurl.Join(origin.Origin, firstNonEmpty(req.GetCallbackUrl(), s.checkoutCfg.CallbackPath))
		if !baseurl.IsAbsoluteHTTPURL(callbackURL) {
			return nil, validationError("callbackUrl must resolve to an absolute http(s) url")
		}
	}

	now := s.now()
	dedupKey := entity.DedupKeyFor(student.ID, amount, code)
	attempt := &entity.CheckoutAttempt{
		TxRef:           txRefPrefix + uuid.NewString(),
		StudentID:       student.ID,
		Provider:        providerCode,
		Intent:          intent,
		Amount:          amount,
		Currency:        code,
		Status:          entity.CheckoutStatusInitialized,
		RequestedMonths: cleanMonths(req.GetMonths()),
		Metadata:        cloneMetadata(req.GetMetadata()),
		DedupKey:        &dedupKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	attempt.SetMetadata("return_url", returnURL)
	attempt.SetMetadata("origin_source", string(origin.Source))

	if err := s.attemptRepo.CreateActive(ctx, attempt, s.guard.WindowStart()); err != nil {
		if errors.Is(err, repository.ErrActiveAttemptExists) {
			return nil, newCheckoutError(CodeDuplicatePayment, ErrDuplicatePayment, "an identical payment is already in progress")
		}
		return nil, err
	}
	s.recordEvent(ctx, attempt, "checkout_initialized", nil)

	logger := s.logger.WithFields(logrus.Fields{
		"tx_ref":     attempt.TxRef,
		"student_id": attempt.StudentID,
		"provider":   entity.ProviderName(providerCode),
	})

	output, initErr := adapter.Initialize(ctx, &provider.InitializeInput{
		TxRef:           attempt.TxRef,
		Intent:          intent,
		Amount:          amount,
		Currency:        code,
		Customer:        customerFor(student),
		RequestedMonths: attempt.RequestedMonths,
		ReturnURL:       returnURL,
		CallbackURL:     callbackURL,
		Metadata:        cloneMetadata(req.GetMetadata()),
	})

	// The caller may have gone away; the ledger still has to reflect the outcome.
	persistCtx := context.WithoutCancel(ctx)

	if initErr != nil {
		checkoutErr := gatewayFailure(initErr)
		checkoutErr.TxRef = attempt.TxRef
		logger.WithError(initErr).WithField("code", checkoutErr.Code).Warn("checkout initialization failed")

		if err := s.failAttempt(persistCtx, attempt, checkoutErr, initErr); err != nil {
			logger.WithError(err).Error("failed to record checkout failure")
		}
		return nil, checkoutErr
	}

	if output.SessionID != "" {
		attempt.SetMetadata("card_session_id", output.SessionID)
	}
	if output.Salvaged {
		attempt.SetMetadata("checkout_url_salvaged", "true")
	}

	checkoutURL := output.CheckoutURL
	if err := attempt.Advance(entity.CheckoutStatusPending, &checkoutURL, s.now()); err != nil {
		return nil, err
	}
	if err := s.attemptRepo.Transition(persistCtx, attempt, entity.CheckoutStatusInitialized); err != nil {
		logger.WithError(err).WithField("checkout_url", checkoutURL).Error("failed to mark checkout pending")
		checkoutErr := AsCheckoutError(err)
		checkoutErr.TxRef = attempt.TxRef

		attempt.Status = entity.CheckoutStatusInitialized
		attempt.CheckoutURL = nil
		attempt.SetMetadata("gateway_checkout_url", checkoutURL)
		attempt.SetMetadata("persist_error", truncate(err.Error(), maxErrorMessageBytes))
		if failErr := s.failAttempt(persistCtx, attempt, checkoutErr, err); failErr != nil {
			logger.WithError(failErr).WithField("checkout_url", checkoutURL).Error("failed to record checkout failure")
		}
		return nil, checkoutErr
	}
	s.recordEvent(persistCtx, attempt, "checkout_pending", statusPtr(entity.CheckoutStatusInitialized))

	logger.Info("checkout session created")

	return &CheckoutResult{
		TxRef:       attempt.TxRef,
		CheckoutURL: checkoutURL,
		Attempt:     attempt,
	}, nil
}

func (s *CheckoutService) GetCheckout(ctx context.Context, txRef string) (*entity.CheckoutAttempt, error) {
	txRef = strings.TrimSpace(txRef)
	if txRef == "" {
		return nil, validationError("txRef is required")
	}

	attempt, err := s.attemptRepo.FindByTxRef(ctx, txRef)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, newCheckoutError(CodeCheckoutNotFound, ErrCheckoutNotFound, "")
	}
	return attempt, nil
}

func (s *CheckoutService) ListCheckouts(ctx context.Context, req listCheckoutsRequest) ([]*entity.CheckoutAttempt, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := req.GetOffset()
	if offset < 0 {
		offset = 0
	}

	return s.attemptRepo.List(ctx, repository.CheckoutAttemptFilter{
		StudentID: req.GetStudentId(),
		HasStatus: req.GetHasStatus(),
		Status:    req.GetStatus(),
		Provider:  req.GetProvider(),
		Limit:     limit,
		Offset:    offset,
	})
}

func (s *CheckoutService) resolveStudent(ctx context.Context, studentID uint64, chatID string) (*entity.Student, error) {
	if studentID > 0 {
		student, err := s.students.FindByID(ctx, studentID)
		if err != nil {
			return nil, err
		}
		if student == nil {
			return nil, newCheckoutError(CodeSubjectNotFound, ErrSubjectNotFound, "")
		}
		return student, nil
	}

	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, validationError("studentId or chatId is required")
	}

	students, err := s.students.FindByChatID(ctx, chatID, 2)
	if err != nil {
		return nil, err
	}
	switch len(students) {
	case 0:
		return nil, newCheckoutError(CodeSubjectNotFound, ErrSubjectNotFound, "")
	case 1:
		return students[0], nil
	default:
		return nil, newCheckoutError(CodeAmbiguousSubject, ErrAmbiguousSubject, "")
	}
}

func (s *CheckoutService) resolveAmount(requested decimal.NullDecimal, student *entity.Student) (decimal.Decimal, error) {
	amount := requested.Decimal
	if !requested.Valid {
		if student.DefaultFee == nil {
			return decimal.Zero, validationError("amount is required")
		}
		amount = *student.DefaultFee
	}

	if !amount.IsPositive() {
		return decimal.Zero, validationError("amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, validationError("amount supports at most 2 decimal places")
	}
	if s.checkoutCfg.MaxAmount.IsPositive() && amount.GreaterThan(s.checkoutCfg.MaxAmount) {
		return decimal.Zero, validationError(fmt.Sprintf("amount must not exceed %s", s.checkoutCfg.MaxAmount.String()))
	}
	return amount, nil
}

func (s *CheckoutService) resolveCurrency(requested string, student *entity.Student) (string, error) {
	raw := strings.TrimSpace(requested)
	if raw == "" && student.DefaultCurrency != nil {
		raw = *student.DefaultCurrency
	}
	if strings.TrimSpace(raw) == "" {
		raw = s.checkoutCfg.DefaultCurrency
	}
	if strings.TrimSpace(raw) == "" {
		raw = s.policy.HomeCurrency
	}

	code, err := currency.Normalize(raw)
	if err != nil {
		return "", validationError("currency must be a 3-letter ISO-4217 code")
	}
	return code, nil
}

func (s *CheckoutService) checkCurrency(providerCode int32, code string) error {
	var err error
	switch providerCode {
	case entity.ProviderMobileMoney:
		err = s.policy.CheckMobileMoney(code)
	case entity.ProviderCard:
		err = s.policy.CheckCard(code)
	}
	if err != nil {
		return newCheckoutError(CodeUnsupportedCurrency, ErrUnsupportedCurrencyForProvider, err.Error())
	}
	return nil
}

func (s *CheckoutService) failAttempt(ctx context.Context, attempt *entity.CheckoutAttempt, checkoutErr *CheckoutError, cause error) error {
	attempt.SetMetadata("error_code", checkoutErr.Code)
	attempt.SetMetadata("error_message", truncate(cause.Error(), maxErrorMessageBytes))

	var gwErr *provider.GatewayError
	if errors.As(cause, &gwErr) {
		if gwErr.Reason != "" {
			attempt.SetMetadata("error_reason", gwErr.Reason)
		}
		if gwErr.HTTPStatus > 0 {
			attempt.SetMetadata("gateway_http_status", strconv.Itoa(gwErr.HTTPStatus))
		}
		if gwErr.Excerpt != "" {
			attempt.SetMetadata("gateway_excerpt", gwErr.Excerpt)
		}
	}

	if err := attempt.Advance(entity.CheckoutStatusFailed, nil, s.now()); err != nil {
		return err
	}
	if err := s.attemptRepo.Transition(ctx, attempt, entity.CheckoutStatusInitialized); err != nil {
		return err
	}
	s.recordEvent(ctx, attempt, "checkout_failed", statusPtr(entity.CheckoutStatusInitialized))
	return nil
}

func (s *CheckoutService) recordEvent(ctx context.Context, attempt *entity.CheckoutAttempt, eventType string, oldStatus *int32) {
	_ = s.eventRepo.Create(ctx, &entity.CheckoutEvent{
		AttemptID: attempt.ID,
		TxRef:     attempt.TxRef,
		EventType: eventType,
		OldStatus: oldStatus,
		NewStatus: attempt.Status,
		CreatedAt: attempt.UpdatedAt,
	})
}

func (s *CheckoutService) batchSize() int32 {
	if s.checkoutCfg.JobBatchSize > 0 {
		return s.checkoutCfg.JobBatchSize
	}
	return defaultBatchSize
}

func mapGuardError(err error) error {
	var rateErr *guard.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		checkoutErr := newCheckoutError(CodeRateLimitExceeded, ErrRateLimitExceeded, "too many checkout attempts, try again later")
		checkoutErr.RetryAfter = rateErr.RetryAfter
		return checkoutErr
	case errors.Is(err, guard.ErrDuplicatePayment):
		return newCheckoutError(CodeDuplicatePayment, ErrDuplicatePayment, "an identical payment is already in progress")
	default:
		return err
	}
}

func gatewayFailure(err error) *CheckoutError {
	var gwErr *provider.GatewayError
	if !errors.As(err, &gwErr) {
		return newCheckoutError(CodeGatewayProtocol, ErrGatewayProtocol, "")
	}

	switch gwErr.Kind {
	case provider.KindConfiguration:
		return newCheckoutError(CodeGatewayConfiguration, ErrGatewayConfiguration, "")
	case provider.KindRejection:
		return newCheckoutError(CodeGatewayRejection, ErrGatewayRejection, gwErr.Message)
	default:
		checkoutErr := newCheckoutError(CodeGatewayProtocol, ErrGatewayProtocol, "")
		checkoutErr.Details = map[string]string{}
		if gwErr.Reason != "" {
			checkoutErr.Details["reason"] = gwErr.Reason
		}
		if gwErr.Excerpt != "" {
			checkoutErr.Details["excerpt"] = gwErr.Excerpt
		}
		return checkoutErr
	}
}

func customerFor(student *entity.Student) provider.Customer {
	customer := provider.Customer{
		StudentID: student.ID,
		FirstName: student.FirstName,
		LastName:  student.LastName,
	}
	if student.Email != nil {
		customer.Email = *student.Email
	}
	if student.Phone != nil {
		customer.Phone = *student.Phone
	}
	return customer
}

func statusPtr(status int32) *int32 {
	return &status
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func cleanMonths(months []string) []string {
	items := make([]string, 0, len(months))
	for _, month := range months {
		if trimmed := strings.TrimSpace(month); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func cloneMetadata(src map[string]string) map[string]string {
	if len(src) == 0 {
		return map[string]string{}
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// truncate cuts value to at most max bytes without splitting a rune.
func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
