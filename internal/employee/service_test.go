package employee_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frahmantamala/employee-onboarding/internal"
	employeeDatamodel "github.com/frahmantamala/employee-onboarding/internal/core/datamodel/employee"
	"github.com/frahmantamala/employee-onboarding/internal/core/events"
	"github.com/frahmantamala/employee-onboarding/internal/credential"
	"github.com/frahmantamala/employee-onboarding/internal/employee"
	employeeJSON "github.com/frahmantamala/employee-onboarding/internal/employee/jsonfile"
	"github.com/frahmantamala/employee-onboarding/internal/storage"
	"github.com/frahmantamala/employee-onboarding/pkg/logger"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func TestEmployee(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Employee Suite")
}

// MockRepository implements employee.RepositoryAPI for testing
type MockRepository struct {
	employees  map[string]employeeDatamodel.Employee
	shouldFail bool
	failError  error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{employees: make(map[string]employeeDatamodel.Employee)}
}

func (m *MockRepository) List() ([]*employeeDatamodel.Employee, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	var out []*employeeDatamodel.Employee
	for _, e := range m.employees {
		e := e
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockRepository) ExistsByName(first, last string) (bool, error) {
	for _, e := range m.employees {
		if e.FirstName == first && e.LastName == last {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRepository) Save(e *employeeDatamodel.Employee) (bool, error) {
	if m.shouldFail {
		return false, m.failError
	}
	if exists, _ := m.ExistsByName(e.FirstName, e.LastName); exists {
		return false, nil
	}
	m.employees[e.ID] = *e
	return true, nil
}

func (m *MockRepository) Update(e *employeeDatamodel.Employee) error {
	if m.shouldFail {
		return m.failError
	}
	if _, ok := m.employees[e.ID]; !ok {
		return employee.ErrNotFound
	}
	m.employees[e.ID] = *e
	return nil
}

func (m *MockRepository) Modify(id string, fn func(*employeeDatamodel.Employee, employee.Peers) error) (*employeeDatamodel.Employee, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	e, ok := m.employees[id]
	if !ok {
		return nil, employee.ErrNotFound
	}
	if err := fn(&e, m); err != nil {
		return nil, err
	}
	m.employees[id] = e
	return &e, nil
}

func (m *MockRepository) NameTaken(first, last, exceptID string) (bool, error) {
	for id, e := range m.employees {
		if id != exceptID && e.FirstName == first && e.LastName == last {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRepository) HandleTaken(handle, exceptID string) (bool, error) {
	for id, e := range m.employees {
		if id != exceptID && e.Handle != nil && *e.Handle == handle {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockRepository) Delete(id string) error {
	if m.shouldFail {
		return m.failError
	}
	delete(m.employees, id)
	return nil
}

func (m *MockRepository) GetByID(id string) (*employeeDatamodel.Employee, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	e, ok := m.employees[id]
	if !ok {
		return nil, employee.ErrNotFound
	}
	return &e, nil
}

func (m *MockRepository) GetByHandle(handle string) (*employeeDatamodel.Employee, error) {
	if m.shouldFail {
		return nil, m.failError
	}
	for _, e := range m.employees {
		if e.Handle != nil && *e.Handle == handle {
			e := e
			return &e, nil
		}
	}
	return nil, employee.ErrNotFound
}

// slowReads stretches the window between a read and the following write.
type slowReads struct {
	*employeeJSON.EmployeeRepository
	delay time.Duration
}

func (r slowReads) GetByID(id string) (*employeeDatamodel.Employee, error) {
	time.Sleep(r.delay)
	return r.EmployeeRepository.GetByID(id)
}

func (r slowReads) GetByHandle(handle string) (*employeeDatamodel.Employee, error) {
	time.Sleep(r.delay)
	return r.EmployeeRepository.GetByHandle(handle)
}

func (r slowReads) List() ([]*employeeDatamodel.Employee, error) {
	time.Sleep(r.delay)
	return r.EmployeeRepository.List()
}

// RecordingPublisher collects published events.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *RecordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func strPtr(s string) *string { return &s }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = Describe("Employee Service", func() {
	var (
		ctx       context.Context
		repo      *MockRepository
		publisher *RecordingPublisher
		service   *employee.Service
		seq       int
	)

	validDTO := func(first, last string) employee.CreateEmployeeDTO {
		return employee.CreateEmployeeDTO{
			FirstName:     first,
			LastName:      last,
			PersonalEmail: strPtr(strings.ToLower(first) + "@example.com"),
			Age:           30,
			Diploma:       "BSc Computer Science",
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = NewMockRepository()
		publisher = &RecordingPublisher{}
		seq = 0
		service = employee.NewService(repo, credential.NewHasher(bcrypt.MinCost), publisher,
			employee.Options{MinimumAge: 18, WorkEmailDomain: "avaya.com"}, testLogger(),
			employee.WithIDGenerator(func() string {
				seq++
				return fmt.Sprintf("id-%03d", seq)
			}),
			employee.WithPasswordGenerator(func() (string, error) { return "aB3$efgh9", nil }),
		)
	})

	Describe("Create", func() {
		It("should create a fresh, not onboarded employee", func() {
			e, err := service.Create(ctx, validDTO(" John ", "Doe"))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.ID).To(Equal("id-001"))
			Expect(e.FirstName).To(Equal("John"))
			Expect(e.Onboarded).To(BeFalse())
			Expect(e.Handle).To(BeNil())
			Expect(e.Password).To(BeNil())
			Expect(repo.employees).To(HaveKey("id-001"))
			Expect(publisher.Types()).To(ConsistOf(events.EmployeeCreatedEventType))
		})

		It("should report a duplicate name as a conflict and store nothing", func() {
			_, err := service.Create(ctx, validDTO("John", "Doe"))
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Create(ctx, validDTO("John", "Doe"))
			Expect(errors.Is(err, internal.ErrEmployeeAlreadyExists)).To(BeTrue())
			Expect(repo.employees).To(HaveLen(1))
		})

		It("should reject minors, empty diplomas and bad emails together", func() {
			dto := validDTO("Jane", "Roe")
			dto.Age = 17
			dto.Diploma = ""
			dto.PersonalEmail = strPtr("nope")

			_, err := service.Create(ctx, dto)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeValidationFailed))

			details := appErr.Details.(internal.ValidationErrors)
			var fields []string
			for _, d := range details.Errors {
				fields = append(fields, d.Field)
			}
			Expect(fields).To(ConsistOf("age", "diploma", "personal_email"))
			Expect(repo.employees).To(BeEmpty())
		})

		It("should log through the request logger carried by the context", func() {
			var buf bytes.Buffer
			reqCtx := logger.NewContext(ctx, slog.New(slog.NewTextHandler(&buf, nil)).With("trace_id", "t-7"))

			_, err := service.Create(reqCtx, validDTO("John", "Doe"))
			Expect(err).NotTo(HaveOccurred())
			Expect(buf.String()).To(ContainSubstring("employee created"))
			Expect(buf.String()).To(ContainSubstring("trace_id=t-7"))
		})

		It("should map storage io failures", func() {
			repo.shouldFail = true
			repo.failError = fmt.Errorf("%w: disk full", storage.ErrIO)

			_, err := service.Create(ctx, validDTO("John", "Doe"))
			Expect(errors.Is(err, internal.ErrStorageIO)).To(BeTrue())
		})
	})

	Describe("List", func() {
		BeforeEach(func() {
			for _, n := range [][2]string{{"Zoe", "Adams"}, {"Adam", "Smith"}, {"Adam", "Jones"}, {"Mia", "Wong"}} {
				_, err := service.Create(ctx, validDTO(n[0], n[1]))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should sort by first then last name", func() {
			page, err := service.List(ctx, employee.ListQuery{})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Total).To(Equal(4))
			Expect(page.Page).To(Equal(1))
			Expect(page.Limit).To(Equal(10))

			var names []string
			for _, e := range page.Employees {
				names = append(names, e.FullName())
			}
			Expect(names).To(Equal([]string{"Adam Jones", "Adam Smith", "Mia Wong", "Zoe Adams"}))
		})

		It("should slice pages", func() {
			page, err := service.List(ctx, employee.ListQuery{Page: 2, Limit: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Employees).To(HaveLen(1))
			Expect(page.Employees[0].FirstName).To(Equal("Zoe"))
			Expect(page.Total).To(Equal(4))
		})

		It("should return an empty page past the end", func() {
			page, err := service.List(ctx, employee.ListQuery{Page: 9, Limit: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Employees).To(BeEmpty())
		})

		It("should cap the limit and reject negative pages", func() {
			page, err := service.List(ctx, employee.ListQuery{Limit: 1000})
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Limit).To(Equal(employee.MaxLimit))

			_, err = service.List(ctx, employee.ListQuery{Page: -1})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Onboard", func() {
		var created *employee.Employee

		BeforeEach(func() {
			var err error
			created, err = service.Create(ctx, validDTO("John", "Doe"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should assign handle, work email and a temporary password", func() {
			e, err := service.Onboard(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*e.Handle).To(Equal("jdoe"))
			Expect(*e.WorkEmail).To(Equal("jdoe@avaya.com"))
			Expect(*e.Password).To(Equal("aB3$efgh9"))
			Expect(e.Onboarded).To(BeTrue())
			Expect(e.SecurePassword).To(BeFalse())

			stored := repo.employees[created.ID]
			Expect(stored.Onboarded).To(BeTrue())
			Expect(publisher.Types()).To(ContainElement(events.EmployeeOnboardedEventType))
		})

		It("should suffix a handle already held by someone else", func() {
			other, err := service.Create(ctx, validDTO("Jane", "Doe"))
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Onboard(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			e, err := service.Onboard(ctx, other.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*e.Handle).To(Equal("jdoe2"))
		})

		It("should refuse to onboard twice", func() {
			_, err := service.Onboard(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Onboard(ctx, created.ID)
			Expect(errors.Is(err, internal.ErrAlreadyOnboarded)).To(BeTrue())
		})

		It("should report unknown ids as not found", func() {
			_, err := service.Onboard(ctx, "missing")
			Expect(errors.Is(err, internal.ErrEmployeeNotFound)).To(BeTrue())
		})
	})

	Describe("SecurePassword", func() {
		var created *employee.Employee

		BeforeEach(func() {
			var err error
			created, err = service.Create(ctx, validDTO("John", "Doe"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should require onboarding first", func() {
			_, err := service.SecurePassword(ctx, created.ID)
			Expect(errors.Is(err, internal.ErrNotOnboarded)).To(BeTrue())
		})

		It("should replace the plaintext with a verifiable digest", func() {
			_, err := service.Onboard(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())

			e, err := service.SecurePassword(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(e.SecurePassword).To(BeTrue())
			Expect(*e.Password).NotTo(Equal("aB3$efgh9"))
			Expect(e.ToResponse().Password).To(BeNil())

			_, err = service.SecurePassword(ctx, created.ID)
			Expect(errors.Is(err, internal.ErrPasswordAlreadySecure)).To(BeTrue())

			verified, err := service.VerifyCredentials(ctx, employee.VerifyCredentialsDTO{Handle: "jdoe", Password: "aB3$efgh9"})
			Expect(err).NotTo(HaveOccurred())
			Expect(verified.ID).To(Equal(created.ID))
		})
	})

	Describe("SetPassword", func() {
		It("should store a digest of the chosen password", func() {
			created, _ := service.Create(ctx, validDTO("John", "Doe"))
			_, err := service.Onboard(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.SetPassword(ctx, created.ID, employee.SetPasswordDTO{Password: "short"})
			Expect(err).To(HaveOccurred())

			e, err := service.SetPassword(ctx, created.ID, employee.SetPasswordDTO{Password: "correct horse"})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.SecurePassword).To(BeTrue())

			_, err = service.VerifyCredentials(ctx, employee.VerifyCredentialsDTO{Handle: "jdoe", Password: "correct horse"})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("VerifyCredentials", func() {
		BeforeEach(func() {
			created, _ := service.Create(ctx, validDTO("John", "Doe"))
			_, err := service.Onboard(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should accept the plaintext temporary password", func() {
			_, err := service.VerifyCredentials(ctx, employee.VerifyCredentialsDTO{Handle: "jdoe", Password: "aB3$efgh9"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject wrong passwords and unknown handles alike", func() {
			_, err := service.VerifyCredentials(ctx, employee.VerifyCredentialsDTO{Handle: "jdoe", Password: "nope"})
			Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(BeTrue())

			_, err = service.VerifyCredentials(ctx, employee.VerifyCredentialsDTO{Handle: "ghost", Password: "nope"})
			Expect(errors.Is(err, internal.ErrInvalidCredentials)).To(BeTrue())
		})
	})

	Describe("Update", func() {
		It("should edit personal data and refuse renames onto another employee", func() {
			john, _ := service.Create(ctx, validDTO("John", "Doe"))
			_, _ = service.Create(ctx, validDTO("Jane", "Doe"))

			e, err := service.Update(ctx, john.ID, employee.UpdateEmployeeDTO{
				FirstName: "John", LastName: "Doe", Age: 41, Diploma: "MBA",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Age).To(Equal(41))
			Expect(e.PersonalEmail).To(BeNil())

			_, err = service.Update(ctx, john.ID, employee.UpdateEmployeeDTO{
				FirstName: "Jane", LastName: "Doe", Age: 41, Diploma: "MBA",
			})
			Expect(errors.Is(err, internal.ErrEmployeeAlreadyExists)).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		It("should remove the record and tolerate repeats", func() {
			e, _ := service.Create(ctx, validDTO("John", "Doe"))

			Expect(service.Delete(ctx, e.ID)).To(Succeed())
			_, err := service.GetByID(ctx, e.ID)
			Expect(errors.Is(err, internal.ErrEmployeeNotFound)).To(BeTrue())

			Expect(service.Delete(ctx, e.ID)).To(Succeed())
			Expect(publisher.Types()).To(ContainElement(events.EmployeeDeletedEventType))
		})
	})

	Describe("concurrent writes on the JSON store", func() {
		var store *employeeJSON.EmployeeRepository

		BeforeEach(func() {
			var err error
			store, err = employeeJSON.Open(filepath.Join(GinkgoT().TempDir(), "employees.json"), storage.UpdateStrict, testLogger())
			Expect(err).NotTo(HaveOccurred())
			service = employee.NewService(slowReads{store, 20 * time.Millisecond}, credential.NewHasher(bcrypt.MinCost), publisher,
				employee.Options{MinimumAge: 18, WorkEmailDomain: "avaya.com"}, testLogger(),
				employee.WithPasswordGenerator(func() (string, error) { return "aB3$efgh9", nil }),
			)
		})

		together := func(fns ...func()) {
			var wg sync.WaitGroup
			for _, fn := range fns {
				fn := fn
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					fn()
				}()
			}
			wg.Wait()
		}

		It("should not let an edit restore a plaintext password that was just secured", func() {
			john, err := service.Create(ctx, validDTO("John", "Doe"))
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Onboard(ctx, john.ID)
			Expect(err).NotTo(HaveOccurred())

			var updateErr, secureErr error
			together(
				func() {
					_, updateErr = service.Update(ctx, john.ID, employee.UpdateEmployeeDTO{
						FirstName: "John", LastName: "Doe", Age: 45, Diploma: "MBA",
					})
				},
				func() { _, secureErr = service.SecurePassword(ctx, john.ID) },
			)
			Expect(updateErr).NotTo(HaveOccurred())
			Expect(secureErr).NotTo(HaveOccurred())

			stored, err := store.GetByID(john.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.SecurePassword).To(BeTrue())
			Expect(*stored.Password).NotTo(Equal("aB3$efgh9"))
			Expect(stored.Age).To(Equal(45))
		})

		It("should keep one record per name when a rename races a create", func() {
			john, err := service.Create(ctx, validDTO("John", "Doe"))
			Expect(err).NotTo(HaveOccurred())

			var updateErr, createErr error
			together(
				func() {
					_, updateErr = service.Update(ctx, john.ID, employee.UpdateEmployeeDTO{
						FirstName: "Ann", LastName: "Lee", Age: 30, Diploma: "BSc",
					})
				},
				func() { _, createErr = service.Create(ctx, validDTO("Ann", "Lee")) },
			)
			Expect([]error{updateErr, createErr}).To(ContainElement(BeNil()))
			Expect([]error{updateErr, createErr}).To(ContainElement(MatchError(internal.ErrEmployeeAlreadyExists)))

			named := 0
			list, err := store.List()
			Expect(err).NotTo(HaveOccurred())
			for _, e := range list {
				if e.FirstName == "Ann" && e.LastName == "Lee" {
					named++
				}
			}
			Expect(named).To(Equal(1))
		})

		It("should hand out distinct handles to simultaneous onboardings", func() {
			john, err := service.Create(ctx, validDTO("John", "Doe"))
			Expect(err).NotTo(HaveOccurred())
			jane, err := service.Create(ctx, validDTO("Jane", "Doe"))
			Expect(err).NotTo(HaveOccurred())

			handles := make([]string, 2)
			together(
				func() {
					e, err := service.Onboard(ctx, john.ID)
					Expect(err).NotTo(HaveOccurred())
					handles[0] = e.HandleValue()
				},
				func() {
					e, err := service.Onboard(ctx, jane.ID)
					Expect(err).NotTo(HaveOccurred())
					handles[1] = e.HandleValue()
				},
			)
			Expect(handles).To(ConsistOf("jdoe", "jdoe2"))

			for _, h := range handles {
				found, err := service.GetByHandle(ctx, h)
				Expect(err).NotTo(HaveOccurred())
				Expect(found.HandleValue()).To(Equal(h))
			}
		})
	})
})
