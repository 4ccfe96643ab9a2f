package sqlinline

const QSelectStepByOperation = `--sql bb9e1227-122f-4823-b81c-5404d6fcae5a
select
    s.id,
    s.plan_id,
    s.identifier,
    s.position,
    s.title,
    s.description,
    coalesce(s.notes, ''),
    coalesce(s.illustration_key, ''),
    coalesce(s.illustration_url, ''),
    s.animation_status,
    s.animation_operation_id,
    s.animation_key,
    s.animation_url,
    s.animation_error,
    coalesce(s.animation_updated_at, s.created_at),
    s.created_at
from steps s
where s.animation_operation_id = $1::text
limit 1;
`

const QSelectStepForAnimation = `--sql 3fafdfa2-08d8-42c7-9143-946eea115288
select
    s.id,
    s.plan_id,
    s.identifier,
    s.position,
    s.title,
    s.description,
    coalesce(s.notes, ''),
    coalesce(s.illustration_key, ''),
    coalesce(s.illustration_url, ''),
    s.animation_status,
    s.animation_operation_id,
    s.animation_key,
    s.animation_url,
    s.animation_error,
    coalesce(s.animation_updated_at, s.created_at),
    s.created_at,
    p.request_summary
from steps s
join plans p on p.id = s.plan_id
where s.id = $1::bigint;
`

const QCountPlanSteps = `--sql 5a564313-c680-49cb-9263-4fd9a9d212d6
select count(*)::int
from steps
where plan_id = $1::bigint;
`

// QTransitionStepAnimation only writes when the stored status still matches
// $2 so that concurrent pollers of the same operation cannot interleave. A
// NULL status next to an operation id is read as processing, the same way
// rows are decoded.
const QTransitionStepAnimation = `--sql 341e6df4-605f-4f45-bee8-1523f14a25dd
update steps
set
    animation_status = $3::text,
    animation_key = $4::text,
    animation_url = $5::text,
    animation_error = $6::text,
    animation_updated_at = now()
where animation_operation_id = $1::text
  and coalesce(animation_status, 'processing') is not distinct from $2::text;
`

// QTouchStepAnimation bumps animation_updated_at of a processing step so the
// reconciler moves on to other stale rows after a failed poll.
const QTouchStepAnimation = `--sql 0f3b8c62-9d4e-4a71-b5e2-6c18a7d90e3f
update steps
set animation_updated_at = now()
where animation_operation_id = $1::text
  and coalesce(animation_status, 'processing') = 'processing';
`

const QResetStepAnimation = `--sql 8c707ec5-a791-497a-83e7-c4d7d35e8150
with prior as (
    select id, animation_operation_id
    from steps
    where id = $1::bigint
    for update
)
update steps s
set
    animation_status = 'processing',
    animation_operation_id = $2::text,
    animation_key = null,
    animation_url = null,
    animation_error = null,
    animation_updated_at = now()
from prior
where s.id = prior.id
returning coalesce(prior.animation_operation_id, '');
`

const QListStaleAnimations = `--sql 6be21fa6-4efe-4d2b-ade8-70ed95e559af
select
    s.id,
    s.plan_id,
    s.identifier,
    s.position,
    s.title,
    s.description,
    coalesce(s.notes, ''),
    coalesce(s.illustration_key, ''),
    coalesce(s.illustration_url, ''),
    s.animation_status,
    s.animation_operation_id,
    s.animation_key,
    s.animation_url,
    s.animation_error,
    coalesce(s.animation_updated_at, s.created_at),
    s.created_at
from steps s
where coalesce(s.animation_status, 'processing') = 'processing'
  and s.animation_operation_id is not null
  and coalesce(s.animation_updated_at, s.created_at) < $1::timestamptz
order by coalesce(s.animation_updated_at, s.created_at) asc
limit $2::int;
`
