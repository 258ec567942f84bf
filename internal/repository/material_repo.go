package repository

import (
	"context"

	"nxfs_api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MaterialRepository struct {
	db *pgxpool.Pool
}

func NewMaterialRepository(db *pgxpool.Pool) *MaterialRepository {
	return &MaterialRepository{db: db}
}

const materialSelect = `
	SELECT m.id, m.el_nr, m.title, m.supplier_id, s.name, m.category_id, m.brand, m.info,
	       m.product_number, m.gtin, m.approved, m.discontinued, m.in_stock, m.favorite,
	       m.created_at, m.updated_at
	FROM materials m
	JOIN suppliers s ON s.id = m.supplier_id`

func scanMaterial(row pgx.Row) (*domain.Material, error) {
	var m domain.Material
	err := row.Scan(&m.ID, &m.ElNr, &m.Title, &m.SupplierID, &m.SupplierName, &m.CategoryID, &m.Brand, &m.Info,
		&m.ProductNumber, &m.GTIN, &m.Approved, &m.Discontinued, &m.InStock, &m.Favorite,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MaterialRepository) List(ctx context.Context, f domain.MaterialFilter) ([]*domain.Material, error) {
	rows, err := r.db.Query(ctx, materialSelect+`
		WHERE ($1 = '' OR m.el_nr ILIKE '%' || $1 || '%' OR m.title ILIKE '%' || $1 || '%')
		  AND ($2::bigint IS NULL OR m.supplier_id = $2)
		  AND ($3::boolean IS NULL OR m.favorite = $3)
		ORDER BY m.el_nr
		LIMIT 200`,
		f.Query, f.SupplierID, f.Favorite,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := []*domain.Material{}
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (r *MaterialRepository) Get(ctx context.Context, id int64) (*domain.Material, error) {
	m, err := scanMaterial(r.db.QueryRow(ctx, materialSelect+` WHERE m.id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

func (r *MaterialRepository) GetByElNr(ctx context.Context, elNr string) (*domain.Material, error) {
	m, err := scanMaterial(r.db.QueryRow(ctx, materialSelect+` WHERE m.el_nr = $1`, elNr))
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

func (r *MaterialRepository) Create(ctx context.Context, m *domain.Material) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO materials (el_nr, title, supplier_id, category_id, brand, info, product_number,
		                        gtin, approved, discontinued, in_stock, favorite)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		m.ElNr, m.Title, m.SupplierID, m.CategoryID, m.Brand, m.Info, m.ProductNumber,
		m.GTIN, m.Approved, m.Discontinued, m.InStock, m.Favorite,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return mapError(err)
}

func (r *MaterialRepository) SetFavorite(ctx context.Context, id int64, favorite bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE materials SET favorite = $2, updated_at = NOW() WHERE id = $1`, id, favorite)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetFavoriteMany updates the favourite flag and returns the ids that existed.
func (r *MaterialRepository) SetFavoriteMany(ctx context.Context, ids []int64, favorite bool) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`UPDATE materials SET favorite = $2, updated_at = NOW()
		 WHERE id = ANY($1::bigint[])
		 RETURNING id`,
		ids, favorite,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updated := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}

func (r *MaterialRepository) ListSuppliers(ctx context.Context) ([]*domain.Supplier, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, phone, website, address, city, postal_code, email FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := []*domain.Supplier{}
	for rows.Next() {
		var s domain.Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Phone, &s.Website, &s.Address, &s.City, &s.PostalCode, &s.Email); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, &s)
	}
	return suppliers, rows.Err()
}

func (r *MaterialRepository) CreateSupplier(ctx context.Context, s *domain.Supplier) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO suppliers (name, phone, website, address, city, postal_code, email)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		s.Name, s.Phone, s.Website, s.Address, s.City, s.PostalCode, s.Email,
	).Scan(&s.ID)
	return mapError(err)
}

func (r *MaterialRepository) ListElectricalCategories(ctx context.Context) ([]*domain.ElectricalCategory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, block_number, name, description, slug, etim_group
		 FROM electrical_categories ORDER BY block_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*domain.ElectricalCategory{}
	for rows.Next() {
		var c domain.ElectricalCategory
		if err := rows.Scan(&c.ID, &c.BlockNumber, &c.Name, &c.Description, &c.Slug, &c.EtimGroup); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

func (r *MaterialRepository) CreateElectricalCategory(ctx context.Context, c *domain.ElectricalCategory) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO electrical_categories (block_number, name, description, slug, etim_group)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		c.BlockNumber, c.Name, c.Description, c.Slug, c.EtimGroup,
	).Scan(&c.ID)
	return mapError(err)
}
