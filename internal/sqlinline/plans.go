package sqlinline

const QInsertPlan = `--sql 1389ec51-bfaf-493a-a4cc-7f01851a79e7
insert into plans (request_summary, project, checklist, upload_id)
values ($1::text, $2::text, coalesce($3::jsonb, '[]'::jsonb), $4::bigint)
returning id, created_at;
`

const QInsertStep = `--sql 6b172813-63b2-4094-85c0-8e5ca2a5833b
insert into steps (
    plan_id,
    identifier,
    position,
    title,
    description,
    notes,
    illustration_key,
    illustration_url,
    animation_status,
    animation_operation_id,
    animation_key,
    animation_url,
    animation_error,
    animation_updated_at
)
values (
    $1::bigint,
    $2::text,
    $3::int,
    $4::text,
    $5::text,
    nullif($6::text, ''),
    nullif($7::text, ''),
    nullif($8::text, ''),
    $9::text,
    $10::text,
    $11::text,
    $12::text,
    $13::text,
    case when $9::text is null then null else now() end
)
returning id;
`

const QListPlans = `--sql 7565a15e-2ef7-46f1-a621-7c02e848a2ae
select
    p.id,
    p.request_summary,
    p.project,
    p.created_at,
    (select count(*) from steps s where s.plan_id = p.id)::int as steps_count
from plans p
order by p.created_at desc, p.id desc
limit $1::int;
`

const QSelectPlan = `--sql efd2afa1-227d-4bbc-bd06-7529130a2d54
select
    id,
    request_summary,
    project,
    checklist,
    upload_id,
    created_at
from plans
where id = $1::bigint;
`

const QSelectPlanSteps = `--sql dfdab176-14d2-4964-ac6c-44e46372f901
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
where s.plan_id = $1::bigint
order by s.position asc;
`

const QDeletePlan = `--sql 461f20c0-1cad-49d2-b2be-8ff8efb7de32
delete from plans
where id = $1::bigint;
`
